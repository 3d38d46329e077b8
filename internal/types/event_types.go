package types

// EventKind 下游事件类型
type EventKind string

const (
	EventProgress      EventKind = "progress"
	EventPartialResult EventKind = "partial_result"
	EventComplete      EventKind = "complete"
	EventError         EventKind = "error"
)

// IsTerminal complete 和 error 之后不会再有任何事件
func (k EventKind) IsTerminal() bool {
	return k == EventComplete || k == EventError
}

// Step 处理阶段，与事件中的 step 字段对应
type Step string

const (
	StepStart      Step = "start"
	StepAnalyzing  Step = "analyzing"
	StepParsing    Step = "parsing"
	StepFormatting Step = "formatting"
	StepComplete   Step = "complete"
	StepError      Step = "error"
)

// EventData 事件负载，直接序列化为 SSE 的 data 字段
type EventData struct {
	Step      Step             `json:"step"`
	Message   string           `json:"message"`
	Progress  int              `json:"progress"`
	Section   Section          `json:"section,omitempty"`
	Result    *JobRequirements `json:"result,omitempty"`
	Error     bool             `json:"error,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
}

// Event 协调器发出的一个事件
type Event struct {
	Kind EventKind `json:"event"`
	Data EventData `json:"data"`
}
