package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"jd-agent-go/internal/tracing"
	"jd-agent-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LLMQuestionGenerator 根据已知信息生成结构化追问问题
type LLMQuestionGenerator struct {
	llmModel   model.ToolCallingChatModel
	schemaJSON string
	modelOpts  []model.Option
	logger     zerolog.Logger
}

// QuestionGeneratorOption 问题生成器配置选项
type QuestionGeneratorOption func(*LLMQuestionGenerator)

// WithQuestionModelOptions 每次调用附带的模型选项
func WithQuestionModelOptions(opts ...model.Option) QuestionGeneratorOption {
	return func(g *LLMQuestionGenerator) {
		g.modelOpts = append(g.modelOpts, opts...)
	}
}

// WithQuestionGeneratorLogger 设置日志记录器
func WithQuestionGeneratorLogger(logger zerolog.Logger) QuestionGeneratorOption {
	return func(g *LLMQuestionGenerator) {
		g.logger = logger
	}
}

// NewLLMQuestionGenerator 创建问题生成器，输出格式的 JSON schema 由 types.QuestionSet 反射生成
func NewLLMQuestionGenerator(llmModel model.ToolCallingChatModel, options ...QuestionGeneratorOption) *LLMQuestionGenerator {
	g := &LLMQuestionGenerator{
		llmModel:   llmModel,
		schemaJSON: questionSetSchema(),
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func questionSetSchema() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	data, err := json.Marshal(reflector.Reflect(&types.QuestionSet{}))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// GenerateQuestions 生成追问问题。模型调用失败返回错误；
// 模型输出无法解析或没有任何问题时回退到默认问题集。
func (g *LLMQuestionGenerator) GenerateQuestions(ctx context.Context, current *types.JobRequirements) (*types.QuestionSet, error) {
	if g.llmModel == nil {
		return nil, fmt.Errorf("LLM模型未初始化")
	}

	contextText := ""
	if current != nil {
		data, err := json.MarshalIndent(current, "", "  ")
		if err == nil {
			contextText = fmt.Sprintf(questionsContextTemplate, string(data))
		}
	}

	messages := []*schema.Message{
		schema.SystemMessage(questionsSystemPrompt),
		schema.UserMessage(fmt.Sprintf(questionsUserPromptTemplate, contextText, g.schemaJSON)),
	}
	resp, err := g.llmModel.Generate(ctx, messages, g.modelOpts...)
	if err != nil {
		return nil, fmt.Errorf("生成追问问题失败: %w", err)
	}

	set, err := parseQuestionSet(resp.Content)
	if err != nil {
		g.logger.Warn().Err(err).
			Str("answer", tracing.TruncateString(resp.Content, tracing.DefaultMaxLength)).
			Msg("无法解析模型生成的问题，使用默认问题")
		return DefaultQuestionSet(), nil
	}
	return set, nil
}

// parseQuestionSet 从模型回答中取出第一个 { 到最后一个 } 之间的 JSON 并解析
func parseQuestionSet(answer string) (*types.QuestionSet, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("回答中没有JSON对象")
	}

	var set types.QuestionSet
	if err := json.Unmarshal([]byte(answer[start:end+1]), &set); err != nil {
		return nil, fmt.Errorf("解析问题JSON失败: %w", err)
	}
	if len(set.QuestionsWithOptions) == 0 {
		return nil, fmt.Errorf("问题列表为空")
	}
	for i := range set.QuestionsWithOptions {
		if set.QuestionsWithOptions[i].Options == nil {
			set.QuestionsWithOptions[i].Options = []types.QuestionOption{}
		}
	}
	return &set, nil
}

// DefaultQuestionSet 默认问题：询问岗位的主要类型
func DefaultQuestionSet() *types.QuestionSet {
	return &types.QuestionSet{
		QuestionsWithOptions: []types.Question{
			{
				Question: "What is the primary role type for this position?",
				Options: []types.QuestionOption{
					{Text: "Technical/Engineering", Value: "technical", Description: "Software development, data engineering, DevOps roles"},
					{Text: "Product Management", Value: "product", Description: "Product strategy, roadmap planning, stakeholder management"},
					{Text: "Sales/Marketing", Value: "sales", Description: "Customer acquisition, revenue generation, market expansion"},
					{Text: "Operations", Value: "operations", Description: "Process optimization, team management, strategic planning"},
				},
				AllowCustomInput: true,
				Required:         true,
			},
		},
	}
}
