package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	defaultQPM           = 30
	defaultMaxRetries    = 3
	defaultRetryWaitTime = 1 * time.Second
)

// Limiter 按每分钟请求数限流，并在可重试错误时做指数退避
type Limiter struct {
	limiter       *rate.Limiter
	retryWaitTime time.Duration
	maxRetries    int
}

// NewLimiter 创建限流器，突发容量为 QPM 的一半（至少为1）
func NewLimiter(qpm int) *Limiter {
	if qpm <= 0 {
		qpm = defaultQPM
	}
	burst := qpm / 2
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiter:       rate.NewLimiter(rate.Limit(float64(qpm)/60.0), burst),
		retryWaitTime: defaultRetryWaitTime,
		maxRetries:    defaultMaxRetries,
	}
}

// WithRetryPolicy 设置重试策略，maxRetries 为 0 表示不重试
func (l *Limiter) WithRetryPolicy(waitTime time.Duration, maxRetries int) *Limiter {
	if waitTime > 0 {
		l.retryWaitTime = waitTime
	}
	if maxRetries >= 0 {
		l.maxRetries = maxRetries
	}
	return l
}

// Wait 等待直到有令牌可用
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// RetryWithBackoff 使用退避策略执行函数并在需要时重试
func (l *Limiter) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var err error

	for retry := 0; retry <= l.maxRetries; retry++ {
		if err = l.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryableError(err) || retry >= l.maxRetries {
			return err
		}

		backoffTime := l.retryWaitTime * time.Duration(1<<uint(retry))
		log.Warn().Err(err).
			Int("retry", retry+1).
			Dur("backoff", backoffTime).
			Msg("LLM 调用失败，等待后重试")

		timer := time.NewTimer(backoffTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}

// IsRetryableError 判断错误是否可重试。上下文取消与超时不重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return contains(err.Error(), []string{
		"timeout",
		"connection reset",
		"EOF",
		"connection refused",
		"429 Too Many Requests",
		"rate limit",
		"no such host",
		"服务器繁忙",
		"请求超过限额",
	})
}

// contains 检查字符串是否包含列表中的任何一个子串
func contains(s string, substrs []string) bool {
	for _, substr := range substrs {
		if substr != "" && strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
