package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"jd-agent-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/sse"
)

// EventPublisher 写出一条 SSE 事件，由 *sse.Stream 实现
type EventPublisher interface {
	Publish(event *sse.Event) error
}

// newSSEPublisher 把响应切换为 text/event-stream
func newSSEPublisher(c *app.RequestContext) EventPublisher {
	return sse.NewStream(c)
}

// SSEEventSink 把处理事件编码为 SSE：event 字段为事件类型，data 字段为 JSON 负载
type SSEEventSink struct {
	publisher EventPublisher
	sent      int
}

// NewSSEEventSink 创建 SSE 事件输出
func NewSSEEventSink(publisher EventPublisher) *SSEEventSink {
	return &SSEEventSink{publisher: publisher}
}

// Emit 实现 processor.EventSink，写入失败通常意味着客户端已断开
func (s *SSEEventSink) Emit(ctx context.Context, event types.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	if err := s.publisher.Publish(&sse.Event{
		Event: string(event.Kind),
		Data:  data,
	}); err != nil {
		return fmt.Errorf("写入SSE事件失败: %w", err)
	}
	s.sent++
	return nil
}

// Sent 已成功写出的事件数
func (s *SSEEventSink) Sent() int {
	return s.sent
}
