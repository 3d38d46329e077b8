package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

// ErrMockExhausted 顺序响应已用完
var ErrMockExhausted = errors.New("mock 模型的预设响应已用完")

// MockResponse 定义了 MockChatModel 的单次预期响应。
// Generate 使用 Content；Stream 依次输出 Chunks，然后以 StreamErr（若非nil）结束。
// Error 非nil时调用本身直接失败。
type MockResponse struct {
	Content   string
	Chunks    []string
	StreamErr error
	Error     error
}

// MockChatModel 用于测试和演示模式的 model.ToolCallingChatModel 模拟实现。
// 每次调用（Generate 或 Stream）按顺序消费一个 MockResponse；
// 只有一个响应时重复使用。
type MockChatModel struct {
	mu               sync.Mutex
	responses        []MockResponse
	index            int
	receivedMessages [][]*schema.Message
	boundTools       []*schema.ToolInfo
}

// NewMockChatModel 创建按顺序返回响应的模拟模型
func NewMockChatModel(responses ...MockResponse) *MockChatModel {
	return &MockChatModel{responses: responses}
}

// NewMockStreamingModel 创建只输出一段流的模拟模型
func NewMockStreamingModel(chunks ...string) *MockChatModel {
	return NewMockChatModel(MockResponse{Chunks: chunks})
}

func (m *MockChatModel) next(input []*schema.Message) (MockResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	received := make([]*schema.Message, len(input))
	copy(received, input)
	m.receivedMessages = append(m.receivedMessages, received)

	if len(m.responses) == 0 {
		return MockResponse{}, ErrMockExhausted
	}
	if len(m.responses) == 1 {
		return m.responses[0], nil
	}
	if m.index >= len(m.responses) {
		return MockResponse{}, ErrMockExhausted
	}
	resp := m.responses[m.index]
	m.index++
	return resp, nil
}

// Generate 模拟 LLM 的 Generate 方法
func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	resp, err := m.next(input)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		log.Debug().Err(resp.Error).Msg("[MockChatModel] 返回预设错误")
		return nil, resp.Error
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

// Stream 模拟 LLM 的 Stream 方法，按预设分块输出
func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	resp, err := m.next(input)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	sr, sw := schema.Pipe[*schema.Message](len(resp.Chunks) + 1)
	go func() {
		defer sw.Close()
		for _, chunk := range resp.Chunks {
			select {
			case <-ctx.Done():
				sw.Send(nil, ctx.Err())
				return
			default:
			}
			if closed := sw.Send(schema.AssistantMessage(chunk, nil), nil); closed {
				return
			}
		}
		if resp.StreamErr != nil {
			sw.Send(nil, resp.StreamErr)
		}
	}()
	return sr, nil
}

// BindTools 模拟绑定工具
func (m *MockChatModel) BindTools(tools []*schema.ToolInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boundTools = tools
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *MockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := m.BindTools(tools); err != nil {
		return nil, err
	}
	return m, nil
}

// Calls 返回已发生的调用次数
func (m *MockChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receivedMessages)
}

// ReceivedMessages 返回每次调用收到的消息
func (m *MockChatModel) ReceivedMessages() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.receivedMessages))
	copy(out, m.receivedMessages)
	return out
}
