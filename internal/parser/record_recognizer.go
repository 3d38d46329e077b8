package parser

import (
	"encoding/json"
	"errors"
	"strings"

	"jd-agent-go/internal/tracing"
	"jd-agent-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrMalformedRecord 一行看起来完整（以 { 开头、以 } 结尾），但无法解码为记录
var ErrMalformedRecord = errors.New("记录解码失败")

// RecognizerStats 识别器在一次运行中的统计信息
type RecognizerStats struct {
	Emitted          int // 成功识别并输出的记录数
	Malformed        int // 被丢弃的格式错误行
	UnknownSections  int // 被丢弃的未知字段记录
	IgnoredLines     int // 非记录行（说明文字、markdown 标记等）
	DiscardedOnFlush int // 流结束时丢弃的未完成内容字节数
	TailAttempts     int // 对未换行尾部的提前解码次数
}

// RecordRecognizer 从逐块到达的模型输出中识别逐行输出的 JSON 记录。
// 每个换行结束的行只会被检查一次；已检查的内容会从缓冲区移除，
// 缓冲区中只保留最后一个尚未结束的行。
// 非并发安全，一次运行独占一个实例。
type RecordRecognizer struct {
	buf     string
	scanned int // buf[:scanned] 已确认不包含换行符
	stats   RecognizerStats
	logger  zerolog.Logger
}

// RecognizerOption 识别器配置选项
type RecognizerOption func(*RecordRecognizer)

// WithRecognizerLogger 设置识别器使用的日志记录器
func WithRecognizerLogger(logger zerolog.Logger) RecognizerOption {
	return func(r *RecordRecognizer) {
		r.logger = logger
	}
}

// NewRecordRecognizer 创建新的记录识别器
func NewRecordRecognizer(options ...RecognizerOption) *RecordRecognizer {
	r := &RecordRecognizer{
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Feed 追加一个文本块并返回本次新识别出的记录（按在缓冲区中出现的顺序）
func (r *RecordRecognizer) Feed(chunk string) []types.Record {
	if chunk == "" {
		return nil
	}
	r.buf += chunk

	var records []types.Record
	for {
		idx := strings.IndexByte(r.buf[r.scanned:], '\n')
		if idx < 0 {
			break
		}
		end := r.scanned + idx
		line := r.buf[:end]
		r.buf = r.buf[end+1:]
		r.scanned = 0

		if rec, ok := r.evaluateLine(line); ok {
			records = append(records, rec)
		}
	}
	r.scanned = len(r.buf)

	// 尚未换行的尾部：只有在能完整解码时才提前消费，解码失败则等待换行后再判定。
	// 本块不以 } 结尾时尾部的判定结果不会变化，不重复解码
	if !endsWithBrace(chunk) {
		return records
	}
	if rec, consumed, ok := r.evaluateTail(); consumed {
		r.buf = ""
		r.scanned = 0
		if ok {
			records = append(records, rec)
		}
	}

	return records
}

// Flush 流结束时调用，丢弃缓冲区中剩余的未完成内容，不做强制解析
func (r *RecordRecognizer) Flush() {
	if r.buf != "" {
		r.stats.DiscardedOnFlush += len(r.buf)
		r.logger.Debug().
			Int("bytes", len(r.buf)).
			Str("tail", tracing.TruncateString(r.buf, tracing.DefaultMaxLength)).
			Msg("流结束，丢弃未完成的尾部内容")
	}
	r.buf = ""
	r.scanned = 0
}

// Reset 为新的一次运行重置识别器
func (r *RecordRecognizer) Reset() {
	r.buf = ""
	r.scanned = 0
	r.stats = RecognizerStats{}
}

// Stats 返回当前统计信息
func (r *RecordRecognizer) Stats() RecognizerStats {
	return r.stats
}

// Pending 返回缓冲区中尚未消费的内容
func (r *RecordRecognizer) Pending() string {
	return r.buf
}

// evaluateLine 对一个已换行结束的行做最终判定，该行无论结果如何都会被消费
func (r *RecordRecognizer) evaluateLine(line string) (types.Record, bool) {
	trimmed := strings.TrimSpace(line)
	if !looksLikeRecord(trimmed) {
		if trimmed != "" {
			r.stats.IgnoredLines++
		}
		return types.Record{}, false
	}

	rec, err := decodeRecord(trimmed)
	if err != nil {
		r.stats.Malformed++
		r.logger.Debug().Err(err).
			Str("line", tracing.TruncateString(trimmed, tracing.DefaultMaxLength)).
			Msg("丢弃格式错误的记录行")
		return types.Record{}, false
	}
	return r.accept(rec)
}

// evaluateTail 尝试提前识别尚未换行的尾部。
// 返回值 consumed 表示尾部是否已被消费（成功解码时），ok 表示是否产生了记录。
func (r *RecordRecognizer) evaluateTail() (rec types.Record, consumed bool, ok bool) {
	trimmed := strings.TrimSpace(r.buf)
	if !looksLikeRecord(trimmed) {
		return types.Record{}, false, false
	}
	r.stats.TailAttempts++
	decoded, err := decodeRecord(trimmed)
	if err != nil {
		// 可能只是被切断在字符串内部的 }，等待更多内容
		return types.Record{}, false, false
	}
	rec, ok = r.accept(decoded)
	return rec, true, ok
}

func (r *RecordRecognizer) accept(rec types.Record) (types.Record, bool) {
	if !rec.Section.IsKnown() {
		r.stats.UnknownSections++
		r.logger.Debug().Str("section", string(rec.Section)).Msg("忽略未知字段的记录")
		return types.Record{}, false
	}
	r.stats.Emitted++
	return rec, true
}

func endsWithBrace(chunk string) bool {
	return strings.HasSuffix(strings.TrimRight(chunk, " \t\r\n"), "}")
}

func looksLikeRecord(trimmed string) bool {
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}

// decodeRecord 把一行解码为记录，section 和 content 两个键都必须存在
func decodeRecord(line string) (types.Record, error) {
	var raw struct {
		Section *string         `json:"section"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return types.Record{}, errors.Join(ErrMalformedRecord, err)
	}
	if raw.Section == nil || raw.Content == nil {
		return types.Record{}, ErrMalformedRecord
	}

	var content interface{}
	if err := json.Unmarshal(raw.Content, &content); err != nil {
		return types.Record{}, errors.Join(ErrMalformedRecord, err)
	}
	return types.Record{
		Section: types.Section(*raw.Section),
		Content: content,
	}, nil
}
