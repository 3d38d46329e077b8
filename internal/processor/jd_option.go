package processor

import (
	"jd-agent-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// JDStreamOption 定义了 JDStreamProcessor 的配置选项函数类型。
type JDStreamOption func(*JDStreamProcessor)

// WithStreamLogger 设置 JDStreamProcessor 使用的日志记录器。
func WithStreamLogger(logger zerolog.Logger) JDStreamOption {
	return func(p *JDStreamProcessor) {
		p.logger = logger
	}
}

// WithStreamTracer 设置链路追踪使用的 tracer。
func WithStreamTracer(tracer trace.Tracer) JDStreamOption {
	return func(p *JDStreamProcessor) {
		p.tracer = tracer
	}
}

// RouterOption 定义了 ScenarioRouter 的配置选项函数类型。
type RouterOption func(*ScenarioRouter)

// WithForcedScenario 跳过模型判断，始终使用指定场景。传入空值表示不强制。
func WithForcedScenario(scenario types.Scenario) RouterOption {
	return func(r *ScenarioRouter) {
		r.forceScenario = scenario
	}
}

// WithRouterLogger 设置 ScenarioRouter 使用的日志记录器。
func WithRouterLogger(logger zerolog.Logger) RouterOption {
	return func(r *ScenarioRouter) {
		r.logger = logger
	}
}

// WithRouterTracer 设置链路追踪使用的 tracer。
func WithRouterTracer(tracer trace.Tracer) RouterOption {
	return func(r *ScenarioRouter) {
		r.tracer = tracer
	}
}
