package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultOpenAIModelName = "gpt-4"
	defaultMaxTokens       = 2000
	defaultTemperature     = 0.1
	// 流式输出的管道缓冲
	streamPipeCapacity = 16
)

// ErrEmptyChoices 模型返回了空的 choices
var ErrEmptyChoices = errors.New("模型响应中没有 choices")

// OpenAIChatModel 基于 openai-go 的 model.ToolCallingChatModel 实现，
// 兼容任何提供 OpenAI 协议的服务（通过 BaseURL 指定）。
type OpenAIChatModel struct {
	client      openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	tools       []*schema.ToolInfo
	logger      zerolog.Logger
}

// OpenAIOption OpenAIChatModel 配置选项
type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	baseURL     string
	modelName   string
	maxTokens   int
	temperature float32
	maxRetries  int
	timeout     time.Duration
	logger      zerolog.Logger
}

// WithBaseURL 指定兼容 OpenAI 协议的服务地址
func WithBaseURL(baseURL string) OpenAIOption {
	return func(o *openAIOptions) {
		o.baseURL = baseURL
	}
}

// WithModelName 指定模型名
func WithModelName(name string) OpenAIOption {
	return func(o *openAIOptions) {
		if strings.TrimSpace(name) != "" {
			o.modelName = name
		}
	}
}

// WithMaxTokens 默认的最大输出 token 数，可被调用时的 model.WithMaxTokens 覆盖
func WithMaxTokens(n int) OpenAIOption {
	return func(o *openAIOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature 默认采样温度
func WithTemperature(t float32) OpenAIOption {
	return func(o *openAIOptions) {
		o.temperature = t
	}
}

// WithClientRetries SDK 内部的重试次数，重试与限流统一交给 ratelimit 包时设为 0
func WithClientRetries(n int) OpenAIOption {
	return func(o *openAIOptions) {
		o.maxRetries = n
	}
}

// WithRequestTimeout 单次请求超时
func WithRequestTimeout(d time.Duration) OpenAIOption {
	return func(o *openAIOptions) {
		o.timeout = d
	}
}

// WithModelLogger 设置日志记录器
func WithModelLogger(logger zerolog.Logger) OpenAIOption {
	return func(o *openAIOptions) {
		o.logger = logger
	}
}

// NewOpenAIChatModel 创建 OpenAIChatModel 实例
func NewOpenAIChatModel(apiKey string, options ...OpenAIOption) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	o := &openAIOptions{
		modelName:   defaultOpenAIModelName,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(o.timeout))
	}

	o.logger.Info().
		Str("model", o.modelName).
		Str("base_url", o.baseURL).
		Int("max_tokens", o.maxTokens).
		Msg("初始化 OpenAI 兼容模型客户端")

	return &OpenAIChatModel{
		client:      openai.NewClient(reqOpts...),
		modelName:   o.modelName,
		maxTokens:   o.maxTokens,
		temperature: o.temperature,
		logger:      o.logger,
	}, nil
}

// ModelName 返回当前使用的模型名
func (m *OpenAIChatModel) ModelName() string {
	return m.modelName
}

// Generate 实现 model.ChatModel 接口
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	params := m.buildParams(messages, opts...)

	start := time.Now()
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyChoices
	}

	m.logger.Debug().
		Str("model", string(params.Model)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("模型调用完成")

	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream 实现 model.ChatModel 接口。
// 每个增量文本作为一条 assistant 消息写入 eino 的 StreamReader；上游失败时以错误结束读取端。
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	params := m.buildParams(messages, opts...)

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	sr, sw := schema.Pipe[*schema.Message](streamPipeCapacity)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				sw.Send(nil, fmt.Errorf("流式读取发生panic: %v", p))
			}
			_ = stream.Close()
			sw.Close()
		}()

		start := time.Now()
		chunks := 0
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			chunks++
			// 读取端已关闭时停止转发
			if closed := sw.Send(schema.AssistantMessage(delta, nil), nil); closed {
				return
			}
		}

		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			sw.Send(nil, fmt.Errorf("openai stream: %w", err))
			return
		}

		m.logger.Debug().
			Str("model", string(params.Model)).
			Int("chunks", chunks).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("流式调用完成")
	}()

	return sr, nil
}

// BindTools 实现 model.ChatModel 接口。抽取流程不使用工具调用，仅记录。
func (m *OpenAIChatModel) BindTools(tools []*schema.ToolInfo) error {
	m.tools = tools
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	clone := *m
	clone.tools = tools
	return &clone, nil
}

func (m *OpenAIChatModel) buildParams(messages []*schema.Message, opts ...model.Option) openai.ChatCompletionNewParams {
	common := model.GetCommonOptions(&model.Options{}, opts...)

	modelName := m.modelName
	if common.Model != nil && *common.Model != "" {
		modelName = *common.Model
	}
	maxTokens := m.maxTokens
	if common.MaxTokens != nil && *common.MaxTokens > 0 {
		maxTokens = *common.MaxTokens
	}
	temperature := m.temperature
	if common.Temperature != nil {
		temperature = *common.Temperature
	}

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(modelName),
		Messages:    convertMessages(messages),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(float64(temperature)),
	}
}

// convertMessages 把 eino 消息转换为 openai-go 的请求消息
func convertMessages(messages []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(msg.Content))
		case schema.Assistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		case schema.Tool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
