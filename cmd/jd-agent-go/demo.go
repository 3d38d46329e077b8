package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"jd-agent-go/internal/processor"
	"jd-agent-go/internal/storage"
	"jd-agent-go/internal/types"
)

const demoDetailedJD = `
Senior Software Engineer

We are looking for a Senior Software Engineer with 5+ years of experience in Python,
JavaScript, and cloud technologies. The ideal candidate should have experience with
microservices architecture, Docker, and Kubernetes. Strong problem-solving skills
and excellent communication abilities are required. Experience with machine learning
frameworks and data engineering is a plus.
`

const demoShortInput = "I need a software engineer"

// runDemo 依次处理一段完整的岗位描述和一句简短需求，并打印结果
func runDemo(ctx context.Context, p *pipeline, sessions storage.SessionStore, out io.Writer) error {
	fmt.Fprintln(out, "=== Processing Detailed Job Description ===")
	if err := demoOne(ctx, p, sessions, demoDetailedJD, out); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Processing Short Input (Need Conversation) ===")
	return demoOne(ctx, p, sessions, demoShortInput, out)
}

func demoOne(ctx context.Context, p *pipeline, sessions storage.SessionStore, input string, out io.Writer) error {
	session, err := sessions.Create(ctx)
	if err != nil {
		return err
	}

	route, err := p.router.Route(ctx, input)
	if err != nil {
		return fmt.Errorf("场景判断失败: %w", err)
	}

	if route.Scenario == types.ScenarioNeedConversation {
		route.Questions.SessionID = session.ID
		return printJSON(out, route.Questions)
	}

	sink := processor.EventSinkFunc(func(ctx context.Context, event types.Event) error {
		_, err := fmt.Fprintf(out, "[%s] %3d%% %s\n", event.Kind, event.Data.Progress, event.Data.Message)
		return err
	})
	result, err := p.runner.Run(ctx, processor.RunRequest{SessionID: session.ID, JDText: route.JDText}, sink)
	if err != nil {
		return fmt.Errorf("流式抽取失败: %w", err)
	}
	return printJSON(out, types.ExtractionOutput{SessionID: session.ID, Requirements: result})
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
