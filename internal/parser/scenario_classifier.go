package parser

import (
	"context"
	"fmt"
	"strings"

	"jd-agent-go/internal/tracing"
	"jd-agent-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultClassifyMaxTokens = 50

// LLMScenarioClassifier 通过模型判断输入是否为详细的岗位描述
type LLMScenarioClassifier struct {
	llmModel  model.ToolCallingChatModel
	maxTokens int
	logger    zerolog.Logger
}

// ClassifierOption 分类器配置选项
type ClassifierOption func(*LLMScenarioClassifier)

// WithClassifyMaxTokens 分类调用的最大输出 token 数
func WithClassifyMaxTokens(n int) ClassifierOption {
	return func(c *LLMScenarioClassifier) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithClassifierLogger 设置日志记录器
func WithClassifierLogger(logger zerolog.Logger) ClassifierOption {
	return func(c *LLMScenarioClassifier) {
		c.logger = logger
	}
}

// NewLLMScenarioClassifier 创建场景分类器
func NewLLMScenarioClassifier(llmModel model.ToolCallingChatModel, options ...ClassifierOption) *LLMScenarioClassifier {
	c := &LLMScenarioClassifier{
		llmModel:  llmModel,
		maxTokens: defaultClassifyMaxTokens,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Classify 返回输入对应的场景，模型调用失败时返回错误
func (c *LLMScenarioClassifier) Classify(ctx context.Context, input string) (types.Scenario, error) {
	if c.llmModel == nil {
		return "", fmt.Errorf("LLM模型未初始化")
	}

	messages := []*schema.Message{
		schema.SystemMessage(classifySystemPrompt),
		schema.UserMessage(fmt.Sprintf(classifyUserPromptTemplate, input)),
	}
	resp, err := c.llmModel.Generate(ctx, messages, model.WithMaxTokens(c.maxTokens))
	if err != nil {
		return "", fmt.Errorf("场景判断调用失败: %w", err)
	}

	scenario := DetectScenario(resp.Content)
	c.logger.Debug().
		Str("answer", tracing.TruncateString(resp.Content, tracing.DefaultMaxLength)).
		Str("scenario", string(scenario)).
		Msg("场景判断完成")
	return scenario, nil
}

// DetectScenario 回答中（不区分大小写）包含 detailed_jd 即为详细岗位描述，其余一律需要追问
func DetectScenario(answer string) types.Scenario {
	if strings.Contains(strings.ToLower(answer), string(types.ScenarioDetailedJD)) {
		return types.ScenarioDetailedJD
	}
	return types.ScenarioNeedConversation
}
