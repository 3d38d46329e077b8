package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"jd-agent-go/internal/agent"
	"jd-agent-go/internal/api/handler"
	"jd-agent-go/internal/api/router"
	"jd-agent-go/internal/parser"
	"jd-agent-go/internal/processor"
	"jd-agent-go/internal/storage"
	"jd-agent-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/hertz-contrib/sse"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = `{"section": "title", "content": "Senior Go Engineer"}
{"section": "technical_skills", "content": ["Go", "Redis"]}
{"section": "nice_to_have", "content": ["Kubernetes"]}
`

// recordingPublisher 代替真实的 SSE 输出，记录写出的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []*sse.Event
	failAt int
}

func (p *recordingPublisher) Publish(event *sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt > 0 && len(p.events)+1 == p.failAt {
		return errors.New("broken pipe")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}

type testEnv struct {
	engine    *server.Hertz
	sessions  *storage.MemorySessionStore
	publisher *recordingPublisher
	extractor *agent.MockChatModel
	questions *agent.MockChatModel
}

type envOptions struct {
	classifyAnswer string
	classifyErr    error
	questionAnswer string
	streamChunks   []string
	streamErr      error
	apiKeys        []string
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	classifierModel := agent.NewMockChatModel(agent.MockResponse{Content: opts.classifyAnswer, Error: opts.classifyErr})
	questionModel := agent.NewMockChatModel(agent.MockResponse{Content: opts.questionAnswer})
	extractorModel := agent.NewMockChatModel(agent.MockResponse{Chunks: opts.streamChunks, StreamErr: opts.streamErr})

	nop := zerolog.Nop()
	scenarioRouter, err := processor.NewScenarioRouter(
		parser.NewLLMScenarioClassifier(classifierModel, parser.WithClassifierLogger(nop)),
		parser.NewLLMQuestionGenerator(questionModel, parser.WithQuestionGeneratorLogger(nop)),
		processor.WithRouterLogger(nop),
	)
	require.NoError(t, err)

	runner, err := processor.NewJDStreamProcessor(
		parser.NewLLMStreamExtractor(extractorModel, parser.WithExtractorLogger(nop)),
		processor.WithStreamLogger(nop),
	)
	require.NoError(t, err)

	sessions := storage.NewMemorySessionStore(time.Hour)
	publisher := &recordingPublisher{}

	jdHandler := handler.NewJDHandler(scenarioRouter, runner, sessions,
		handler.WithHandlerLogger(nop),
		handler.WithStreamTimeout(5*time.Second),
		handler.WithEventPublisher(func(c *app.RequestContext) handler.EventPublisher { return publisher }),
	)

	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(h, router.Handlers{
		JD:      jdHandler,
		Session: handler.NewSessionHandler(sessions),
	}, opts.apiKeys)

	return &testEnv{engine: h, sessions: sessions, publisher: publisher, extractor: extractorModel, questions: questionModel}
}

func postJSON(engine *server.Hertz, path string, payload interface{}, headers ...ut.Header) *ut.ResponseRecorder {
	body, _ := json.Marshal(payload)
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	return ut.PerformRequest(engine.Engine, http.MethodPost, path,
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		headers...,
	)
}

func TestProcessJDDetailedStreamsEventsAndSavesResult(t *testing.T) {
	env := newTestEnv(t, envOptions{
		classifyAnswer: "detailed_jd",
		streamChunks:   []string{sampleStream[:30], sampleStream[30:]},
	})

	resp := postJSON(env.engine, "/api/v1/jd/process", handler.ProcessJDRequest{JDText: "We are hiring a senior Go engineer..."})
	require.Equal(t, http.StatusOK, resp.Code)

	kinds := env.publisher.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, "progress", kinds[0])
	assert.Equal(t, "complete", kinds[len(kinds)-1])
	assert.Contains(t, kinds, "partial_result")

	var final types.EventData
	last := env.publisher.events[len(env.publisher.events)-1]
	require.NoError(t, json.Unmarshal(last.Data, &final))
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.Result)
	assert.Equal(t, "Senior Go Engineer", final.Result.Title)
	assert.NotEmpty(t, final.SessionID)

	session, err := env.sessions.Get(context.Background(), final.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.ScenarioDetailedJD, session.Data.Scenario)
	require.NotNil(t, session.Data.Requirements)
	assert.Equal(t, []string{"Go", "Redis"}, session.Data.Requirements.MustHave.TechnicalSkills)
}

func TestProcessJDNeedConversationReturnsQuestions(t *testing.T) {
	env := newTestEnv(t, envOptions{
		classifyAnswer: "need_conversation",
		questionAnswer: "not json at all",
	})

	resp := postJSON(env.engine, "/api/v1/jd/process", handler.ProcessJDRequest{JDText: "need a dev"})
	require.Equal(t, http.StatusOK, resp.Code)

	var out handler.ConversationResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, types.ScenarioNeedConversation, out.Scenario)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, parser.DefaultQuestionSet().QuestionsWithOptions, out.QuestionsWithOptions)
	assert.Empty(t, env.publisher.kinds(), "追问场景不应输出SSE事件")
	assert.Equal(t, 0, env.extractor.Calls())

	session, err := env.sessions.Get(context.Background(), out.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session.Data.Questions)
	assert.Equal(t, out.SessionID, session.Data.Questions.SessionID)
}

func TestProcessJDClassifyFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{classifyErr: errors.New("upstream 503")})

	resp := postJSON(env.engine, "/api/v1/jd/process", handler.ProcessJDRequest{JDText: "some jd"})

	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Empty(t, env.publisher.kinds())
	assert.Equal(t, 0, env.extractor.Calls())
}

func TestProcessJDRejectsBlankInput(t *testing.T) {
	env := newTestEnv(t, envOptions{classifyAnswer: "detailed_jd"})

	for _, body := range []interface{}{
		handler.ProcessJDRequest{JDText: ""},
		handler.ProcessJDRequest{JDText: "   \n\t"},
		map[string]int{"jd_text": 3},
	} {
		resp := postJSON(env.engine, "/api/v1/jd/process", body)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	}
	assert.Empty(t, env.publisher.kinds())
}

func TestProcessJDUnknownOrClosedSession(t *testing.T) {
	env := newTestEnv(t, envOptions{classifyAnswer: "detailed_jd", streamChunks: []string{sampleStream}})

	resp := postJSON(env.engine, "/api/v1/jd/stream", handler.ProcessJDRequest{JDText: "jd", SessionID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	session, err := env.sessions.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, env.sessions.CloseSession(context.Background(), session.ID))

	resp = postJSON(env.engine, "/api/v1/jd/stream", handler.ProcessJDRequest{JDText: "jd", SessionID: session.ID})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Empty(t, env.publisher.kinds())
}

func TestStreamJDUsesExistingSession(t *testing.T) {
	env := newTestEnv(t, envOptions{streamChunks: []string{sampleStream}})
	session, err := env.sessions.Create(context.Background())
	require.NoError(t, err)

	resp := postJSON(env.engine, "/api/v1/jd/stream", handler.ProcessJDRequest{JDText: "jd", SessionID: session.ID})
	require.Equal(t, http.StatusOK, resp.Code)

	kinds := env.publisher.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, "complete", kinds[len(kinds)-1])

	got, err := env.sessions.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Data.Requirements)
	assert.Equal(t, []string{"Kubernetes"}, got.Data.Requirements.NiceToHave)
}

func TestStreamJDUpstreamErrorEmitsSingleErrorEvent(t *testing.T) {
	env := newTestEnv(t, envOptions{
		streamChunks: []string{`{"section": "title", "content": "X"}` + "\n"},
		streamErr:    errors.New("connection reset"),
	})

	resp := postJSON(env.engine, "/api/v1/jd/stream", handler.ProcessJDRequest{JDText: "jd"})
	require.Equal(t, http.StatusOK, resp.Code)

	kinds := env.publisher.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, "error", kinds[len(kinds)-1])
	assert.NotContains(t, kinds, "complete")

	var data types.EventData
	require.NoError(t, json.Unmarshal(env.publisher.events[len(env.publisher.events)-1].Data, &data))
	assert.True(t, data.Error)
	assert.Equal(t, 0, data.Progress)

	session, err := env.sessions.Get(context.Background(), data.SessionID)
	require.NoError(t, err)
	assert.Nil(t, session.Data.Requirements, "失败的运行不保存结果")
}

func TestStreamJDClientGoneStopsRun(t *testing.T) {
	env := newTestEnv(t, envOptions{streamChunks: []string{sampleStream}})
	env.publisher.failAt = 2

	resp := postJSON(env.engine, "/api/v1/jd/stream", handler.ProcessJDRequest{JDText: "jd"})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"progress"}, env.publisher.kinds())
}

// 已有会话中的抽取结果会作为上下文传给追问问题生成
func TestProcessJDQuestionsUseSessionRequirements(t *testing.T) {
	env := newTestEnv(t, envOptions{classifyAnswer: "need_conversation", questionAnswer: "{}"})
	session, err := env.sessions.Create(context.Background())
	require.NoError(t, err)
	_, err = env.sessions.Update(context.Background(), session.ID, func(d *storage.SessionData) {
		req := types.NewJobRequirements()
		req.Title = "Staff Platform Engineer"
		d.Requirements = &req
	})
	require.NoError(t, err)

	resp := postJSON(env.engine, "/api/v1/jd/process", handler.ProcessJDRequest{JDText: "more people", SessionID: session.ID})
	require.Equal(t, http.StatusOK, resp.Code)

	received := env.questions.ReceivedMessages()
	require.Len(t, received, 1)
	prompt := received[0][len(received[0])-1].Content
	assert.Contains(t, prompt, "Staff Platform Engineer")
}

// stalledStreamer 打开的输出流在 ctx 结束前不会产生任何内容
type stalledStreamer struct{}

func (stalledStreamer) StreamChunks(ctx context.Context, jdText string) (processor.ChunkSource, error) {
	return stalledSource{ctx: ctx}, nil
}

type stalledSource struct{ ctx context.Context }

func (s stalledSource) Recv() (string, error) {
	<-s.ctx.Done()
	return "", s.ctx.Err()
}

func (s stalledSource) Close() {}

func TestStreamJDTimeoutEmitsErrorEvent(t *testing.T) {
	runner, err := processor.NewJDStreamProcessor(stalledStreamer{}, processor.WithStreamLogger(zerolog.Nop()))
	require.NoError(t, err)
	sessions := storage.NewMemorySessionStore(time.Hour)
	publisher := &recordingPublisher{}
	jdHandler := handler.NewJDHandler(nil, runner, sessions,
		handler.WithHandlerLogger(zerolog.Nop()),
		handler.WithStreamTimeout(50*time.Millisecond),
		handler.WithEventPublisher(func(c *app.RequestContext) handler.EventPublisher { return publisher }),
	)
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(h, router.Handlers{JD: jdHandler, Session: handler.NewSessionHandler(sessions)}, nil)

	resp := postJSON(h, "/api/v1/jd/stream", handler.ProcessJDRequest{JDText: "jd"})
	require.Equal(t, http.StatusOK, resp.Code)

	assert.Equal(t, []string{"progress", "progress", "error"}, publisher.kinds())
	var data types.EventData
	require.NoError(t, json.Unmarshal(publisher.events[len(publisher.events)-1].Data, &data))
	assert.True(t, data.Error)
	assert.NotEmpty(t, data.SessionID)
}
