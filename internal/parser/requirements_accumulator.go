package parser

import (
	"jd-agent-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequirementsAccumulator 持有一次运行中的岗位要求部分结果。
// 每条记录整体覆盖对应字段（后写入者生效），不做追加合并。
// 非并发安全，一次运行独占一个实例。
type RequirementsAccumulator struct {
	current types.JobRequirements
	merged  int
	logger  zerolog.Logger
}

// AccumulatorOption 累加器配置选项
type AccumulatorOption func(*RequirementsAccumulator)

// WithAccumulatorLogger 设置累加器使用的日志记录器
func WithAccumulatorLogger(logger zerolog.Logger) AccumulatorOption {
	return func(a *RequirementsAccumulator) {
		a.logger = logger
	}
}

// NewRequirementsAccumulator 创建一个空的累加器，所有字段为空值
func NewRequirementsAccumulator(options ...AccumulatorOption) *RequirementsAccumulator {
	a := &RequirementsAccumulator{
		current: types.NewJobRequirements(),
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Merge 把一条记录应用到当前结果。未知字段不做任何修改并返回 false。
// 内容类型与字段不符时写入该字段类型的空值。
func (a *RequirementsAccumulator) Merge(rec types.Record) bool {
	if !rec.Section.IsKnown() {
		return false
	}

	if rec.Section.ExpectsText() {
		text, ok := rec.Content.(string)
		if !ok {
			a.logMismatch(rec, "string")
		}
		switch rec.Section {
		case types.SectionTitle:
			a.current.Title = text
		case types.SectionDescription:
			a.current.Description = text
		}
	} else {
		list, ok := coerceStringList(rec.Content)
		if !ok {
			a.logMismatch(rec, "list")
		}
		switch rec.Section {
		case types.SectionTechnicalSkills:
			a.current.MustHave.TechnicalSkills = list
		case types.SectionDomainExperience:
			a.current.MustHave.DomainExperience = list
		case types.SectionSoftSkills:
			a.current.MustHave.SoftSkills = list
		case types.SectionNiceToHave:
			a.current.NiceToHave = list
		}
	}

	a.merged++
	return true
}

// Snapshot 返回当前结果的深拷贝
func (a *RequirementsAccumulator) Snapshot() types.JobRequirements {
	return a.current.Clone()
}

// Merged 已合并的记录数
func (a *RequirementsAccumulator) Merged() int {
	return a.merged
}

func (a *RequirementsAccumulator) logMismatch(rec types.Record, expected string) {
	a.logger.Debug().
		Str("section", string(rec.Section)).
		Str("expected", expected).
		Type("got", rec.Content).
		Msg("记录内容类型与字段不符，已置为空值")
}

// coerceStringList 把 JSON 解码得到的列表转换为字符串切片，非字符串元素被跳过。
// 返回的切片永远不为 nil；第二个返回值表示内容本身是否为列表。
func coerceStringList(content interface{}) ([]string, bool) {
	switch v := content.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return []string{}, false
	}
}
