package main

import (
	"fmt"
	"time"

	"jd-agent-go/internal/agent"
	"jd-agent-go/internal/config"
	"jd-agent-go/internal/parser"
	"jd-agent-go/internal/processor"
	"jd-agent-go/internal/ratelimit"
	"jd-agent-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
)

// pipeline 一次构建、被所有请求共享的处理组件
type pipeline struct {
	router *processor.ScenarioRouter
	runner *processor.JDStreamProcessor
}

// newChatModel 创建 OpenAI 兼容模型并套上限流和重试
func newChatModel(cfg *config.LLMConfig, logger zerolog.Logger) (model.ToolCallingChatModel, error) {
	base, err := agent.NewOpenAIChatModel(cfg.APIKey,
		agent.WithBaseURL(cfg.BaseURL),
		agent.WithModelName(cfg.Model),
		agent.WithMaxTokens(cfg.MaxTokens),
		agent.WithTemperature(float32(cfg.Temperature)),
		agent.WithRequestTimeout(config.GetDuration(cfg.RequestTimeout, 120*time.Second)),
		agent.WithModelLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	retryWait := time.Duration(cfg.RetryWaitSeconds) * time.Second
	return ratelimit.NewLLMWithRateLimit(base, cfg.QPM, cfg.MaxRetries, retryWait), nil
}

// newPipeline 组装场景路由和流式抽取
func newPipeline(llm model.ToolCallingChatModel, cfg *config.Config, logger zerolog.Logger) (*pipeline, error) {
	extractor := parser.NewLLMStreamExtractor(llm, parser.WithExtractorLogger(logger))
	classifier := parser.NewLLMScenarioClassifier(llm,
		parser.WithClassifyMaxTokens(cfg.LLM.ClassifyMaxTokens),
		parser.WithClassifierLogger(logger),
	)
	questions := parser.NewLLMQuestionGenerator(llm, parser.WithQuestionGeneratorLogger(logger))

	routerOpts := []processor.RouterOption{processor.WithRouterLogger(logger)}
	if cfg.Pipeline.ForceScenario != "" {
		routerOpts = append(routerOpts, processor.WithForcedScenario(types.Scenario(cfg.Pipeline.ForceScenario)))
	}
	router, err := processor.NewScenarioRouter(classifier, questions, routerOpts...)
	if err != nil {
		return nil, fmt.Errorf("初始化场景路由失败: %w", err)
	}

	runner, err := processor.NewJDStreamProcessor(extractor, processor.WithStreamLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("初始化流式抽取失败: %w", err)
	}
	return &pipeline{router: router, runner: runner}, nil
}

// newOfflineModel 演示模式下不调用真实模型时使用的固定输出
func newOfflineModel() model.ToolCallingChatModel {
	return agent.NewMockChatModel(
		agent.MockResponse{Content: "detailed_jd"},
		agent.MockResponse{Chunks: []string{
			`{"section": "title", "content": "Senior Software Engineer"}` + "\n",
			`{"section": "description", "content": "Build and operate cloud services."}` + "\n",
			`{"section": "technical_skills", "content": ["Python", "JavaScript", "Docker", "Kubernetes"]}` + "\n",
			`{"section": "domain_experience", "content": ["Microservices architecture"]}` + "\n",
			`{"section": "soft_skills", "content": ["Problem solving", "Communication"]}` + "\n",
			`{"section": "nice_to_have", "content": ["Machine learning frameworks", "Data engineering"]}` + "\n",
		}},
		agent.MockResponse{Content: "need_conversation"},
		agent.MockResponse{Content: "{}"},
	)
}
