package processor

import (
	"context"
	"fmt"

	"jd-agent-go/internal/tracing"
	"jd-agent-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RouteResult 路由结果。
// detailed_jd 时 JDText 为原始输入，交给抽取流程；need_conversation 时 Questions 为追问问题。
type RouteResult struct {
	Scenario  types.Scenario
	JDText    string
	Questions *types.QuestionSet
}

// ScenarioRouter 根据一次场景判断把输入分发到抽取流程或追问流程。
// 不做重试，不在调用之间保存状态。
type ScenarioRouter struct {
	classifier    ScenarioClassifier
	questions     QuestionGenerator
	forceScenario types.Scenario
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// NewScenarioRouter 创建场景路由器
func NewScenarioRouter(classifier ScenarioClassifier, questions QuestionGenerator, options ...RouterOption) (*ScenarioRouter, error) {
	if classifier == nil {
		return nil, fmt.Errorf("ScenarioClassifier 不能为空")
	}
	if questions == nil {
		return nil, fmt.Errorf("QuestionGenerator 不能为空")
	}

	r := &ScenarioRouter{
		classifier: classifier,
		questions:  questions,
		logger:     log.Logger,
		tracer:     tracing.Tracer(),
	}
	for _, option := range options {
		option(r)
	}
	return r, nil
}

// Route 判断输入的场景并给出下一步
func (r *ScenarioRouter) Route(ctx context.Context, input string) (*RouteResult, error) {
	return r.RouteWithContext(ctx, input, nil)
}

// RouteWithContext 与 Route 相同，current 为已知的部分岗位信息，用于生成更有针对性的追问问题
func (r *ScenarioRouter) RouteWithContext(ctx context.Context, input string, current *types.JobRequirements) (*RouteResult, error) {
	ctx, span := r.tracer.Start(ctx, "ScenarioRouter.Route")
	defer span.End()

	scenario := r.forceScenario
	if scenario == "" {
		signal, err := r.classifier.Classify(ctx, input)
		if err != nil {
			rerr := &StreamError{Op: "classify", BaseErr: ErrClassifyFailed, Cause: err}
			tracing.RecordError(span, rerr, tracing.ErrorTypeLLM)
			return nil, rerr
		}
		scenario = signal
	}
	if scenario != types.ScenarioDetailedJD {
		scenario = types.ScenarioNeedConversation
	}
	span.SetAttributes(attribute.String("scenario", string(scenario)))
	r.logger.Info().Str("scenario", string(scenario)).Bool("forced", r.forceScenario != "").Msg("场景路由完成")

	if scenario == types.ScenarioDetailedJD {
		return &RouteResult{Scenario: scenario, JDText: input}, nil
	}

	set, err := r.questions.GenerateQuestions(ctx, current)
	if err != nil {
		rerr := &StreamError{Op: "questions", BaseErr: ErrQuestionsFailed, Cause: err}
		tracing.RecordError(span, rerr, tracing.ErrorTypeLLM)
		return nil, rerr
	}
	return &RouteResult{Scenario: scenario, Questions: set}, nil
}
