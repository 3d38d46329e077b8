package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedChatModel 对模型调用进行限流与重试的代理。
// Stream 只对建立流的阶段重试，流一旦开始，中途的错误原样交给调用方。
type RateLimitedChatModel struct {
	original model.ToolCallingChatModel
	limiter  *Limiter
}

// NewRateLimitedChatModel 创建一个新的限流模型代理
func NewRateLimitedChatModel(original model.ToolCallingChatModel, qpm int) *RateLimitedChatModel {
	return &RateLimitedChatModel{
		original: original,
		limiter:  NewLimiter(qpm),
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedChatModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedChatModel {
	rl.limiter.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// Generate 代理Generate方法，增加限流和重试逻辑
func (rl *RateLimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message
	err := rl.limiter.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = rl.original.Generate(ctx, messages, options...)
		return genErr
	})
	return response, err
}

// Stream 代理Stream方法，增加限流和重试逻辑
func (rl *RateLimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := rl.limiter.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, options...)
		return streamErr
	})
	return stream, err
}

// WithTools 代理WithTools方法，新代理共享同一个限流器
func (rl *RateLimitedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedChatModel{
		original: newModel,
		limiter:  rl.limiter,
	}, nil
}

// NewLLMWithRateLimit 从配置创建带限流的模型
func NewLLMWithRateLimit(original model.ToolCallingChatModel, qpm int, maxRetries int, retryWaitTime time.Duration) model.ToolCallingChatModel {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return NewRateLimitedChatModel(original, qpm).WithRetryPolicy(retryWaitTime, maxRetries)
}
