package handler

import (
	"context"
	"errors"

	"jd-agent-go/internal/processor"
	"jd-agent-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"go.opentelemetry.io/otel/trace"
)

// writeError 返回 JSON 错误并记录到当前请求的 span
func writeError(ctx context.Context, c *app.RequestContext, status int, err error, body utils.H) {
	tracing.RecordHTTPErrorWithType(trace.SpanFromContext(ctx), err, status, errorTypeOf(err))
	c.JSON(status, body)
}

func errorTypeOf(err error) tracing.ErrorType {
	if errors.Is(err, processor.ErrEmptyInput) {
		return tracing.ErrorTypeValidation
	}
	return tracing.ErrorTypeHTTP
}
