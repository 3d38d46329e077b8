package processor

import (
	"context"

	"jd-agent-go/internal/types"
)

//
// 上游：模型输出流
//

// ChunkSource 模型输出的增量文本流，Recv 在流结束时返回 io.EOF
type ChunkSource = types.ChunkSource

// ChunkStreamer 为一段岗位描述打开模型输出流
type ChunkStreamer interface {
	StreamChunks(ctx context.Context, jdText string) (ChunkSource, error)
}

//
// 下游：事件接收方
//

// EventSink 接收协调器发出的事件。返回错误表示下游已不可用，本次运行随即结束。
type EventSink interface {
	Emit(ctx context.Context, event types.Event) error
}

// EventSinkFunc 函数形式的 EventSink
type EventSinkFunc func(ctx context.Context, event types.Event) error

// Emit 实现 EventSink 接口
func (f EventSinkFunc) Emit(ctx context.Context, event types.Event) error {
	return f(ctx, event)
}

//
// 场景路由相关接口
//

// ScenarioClassifier 判断输入属于哪种场景
type ScenarioClassifier interface {
	Classify(ctx context.Context, input string) (types.Scenario, error)
}

// QuestionGenerator 在信息不足时生成结构化追问问题
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, current *types.JobRequirements) (*types.QuestionSet, error)
}
