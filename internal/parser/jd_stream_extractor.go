package parser

import (
	"context"
	"fmt"

	"jd-agent-go/internal/tracing"
	"jd-agent-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LLMStreamExtractor 调用模型的流式接口，按行输出岗位要求记录
type LLMStreamExtractor struct {
	llmModel  model.ToolCallingChatModel
	modelOpts []model.Option
	logger    zerolog.Logger
}

// ExtractorOption 抽取器配置选项
type ExtractorOption func(*LLMStreamExtractor)

// WithExtractorModelOptions 每次调用附带的模型选项（温度、最大 token 数等）
func WithExtractorModelOptions(opts ...model.Option) ExtractorOption {
	return func(e *LLMStreamExtractor) {
		e.modelOpts = append(e.modelOpts, opts...)
	}
}

// WithExtractorLogger 设置日志记录器
func WithExtractorLogger(logger zerolog.Logger) ExtractorOption {
	return func(e *LLMStreamExtractor) {
		e.logger = logger
	}
}

// NewLLMStreamExtractor 创建流式抽取器
func NewLLMStreamExtractor(llmModel model.ToolCallingChatModel, options ...ExtractorOption) *LLMStreamExtractor {
	e := &LLMStreamExtractor{
		llmModel: llmModel,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// StreamChunks 打开模型输出流
func (e *LLMStreamExtractor) StreamChunks(ctx context.Context, jdText string) (types.ChunkSource, error) {
	if e.llmModel == nil {
		return nil, fmt.Errorf("LLM模型未初始化")
	}

	messages := []*schema.Message{
		schema.SystemMessage(extractionSystemPrompt),
		schema.UserMessage(fmt.Sprintf(extractionUserPromptTemplate, jdText)),
	}

	e.logger.Debug().
		Str("jd_text", tracing.TruncateString(jdText, tracing.DefaultMaxLength)).
		Msg("开始流式抽取岗位要求")

	reader, err := e.llmModel.Stream(ctx, messages, e.modelOpts...)
	if err != nil {
		return nil, fmt.Errorf("打开模型输出流失败: %w", err)
	}
	return &messageChunkSource{reader: reader}, nil
}

// messageChunkSource 把 eino 的消息流适配为文本块流
type messageChunkSource struct {
	reader *schema.StreamReader[*schema.Message]
}

// Recv 返回下一个非空文本块，流结束时返回 io.EOF
func (s *messageChunkSource) Recv() (string, error) {
	for {
		msg, err := s.reader.Recv()
		if err != nil {
			return "", err
		}
		if msg != nil && msg.Content != "" {
			return msg.Content, nil
		}
	}
}

func (s *messageChunkSource) Close() {
	s.reader.Close()
}
