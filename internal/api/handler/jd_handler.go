package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"jd-agent-go/internal/processor"
	"jd-agent-go/internal/storage"
	"jd-agent-go/internal/tracing"
	"jd-agent-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Router 场景路由，由 *processor.ScenarioRouter 实现
type Router interface {
	RouteWithContext(ctx context.Context, input string, current *types.JobRequirements) (*processor.RouteResult, error)
}

// ExtractionRunner 流式抽取，由 *processor.JDStreamProcessor 实现
type ExtractionRunner interface {
	Run(ctx context.Context, req processor.RunRequest, sink processor.EventSink) (types.JobRequirements, error)
}

// ProcessJDRequest 处理请求体
type ProcessJDRequest struct {
	JDText    string `json:"jd_text"`
	SessionID string `json:"session_id,omitempty"`
}

// ConversationResponse 信息不足时返回的追问问题
type ConversationResponse struct {
	Scenario             types.Scenario   `json:"scenario"`
	SessionID            string           `json:"session_id"`
	QuestionsWithOptions []types.Question `json:"questions_with_options"`
}

// JDHandler 处理岗位描述相关的请求
type JDHandler struct {
	router        Router
	runner        ExtractionRunner
	sessions      storage.SessionStore
	streamTimeout time.Duration
	logger        zerolog.Logger
	newPublisher  func(c *app.RequestContext) EventPublisher
}

// JDHandlerOption 配置 JDHandler
type JDHandlerOption func(*JDHandler)

// WithStreamTimeout 单次流式抽取的最长时间，0 表示不限制
func WithStreamTimeout(d time.Duration) JDHandlerOption {
	return func(h *JDHandler) {
		h.streamTimeout = d
	}
}

// WithHandlerLogger 设置日志记录器
func WithHandlerLogger(logger zerolog.Logger) JDHandlerOption {
	return func(h *JDHandler) {
		h.logger = logger
	}
}

// WithEventPublisher 替换 SSE 输出，测试中用于捕获事件
func WithEventPublisher(factory func(c *app.RequestContext) EventPublisher) JDHandlerOption {
	return func(h *JDHandler) {
		h.newPublisher = factory
	}
}

// NewJDHandler 创建一个新的 JDHandler 实例
func NewJDHandler(router Router, runner ExtractionRunner, sessions storage.SessionStore, options ...JDHandlerOption) *JDHandler {
	h := &JDHandler{
		router:       router,
		runner:       runner,
		sessions:     sessions,
		logger:       log.Logger,
		newPublisher: newSSEPublisher,
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// HandleProcessJD 先判断场景再决定流式抽取或返回追问问题
// POST /api/v1/jd/process
func (h *JDHandler) HandleProcessJD(ctx context.Context, c *app.RequestContext) {
	req, ok := h.bindRequest(ctx, c)
	if !ok {
		return
	}
	session, ok := h.resolveSession(ctx, c, req.SessionID)
	if !ok {
		return
	}

	// 会话中已有的抽取结果用于生成更有针对性的追问
	route, err := h.router.RouteWithContext(ctx, req.JDText, session.Data.Requirements)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", session.ID).Msg("场景判断失败")
		writeError(ctx, c, consts.StatusBadGateway, err, utils.H{"error": "场景判断失败", "session_id": session.ID})
		return
	}

	if route.Scenario == types.ScenarioNeedConversation {
		h.respondWithQuestions(ctx, c, session.ID, req.JDText, route.Questions)
		return
	}
	h.streamExtraction(ctx, c, session.ID, route.JDText)
}

// HandleStreamJD 跳过场景判断，直接流式抽取
// POST /api/v1/jd/stream
func (h *JDHandler) HandleStreamJD(ctx context.Context, c *app.RequestContext) {
	req, ok := h.bindRequest(ctx, c)
	if !ok {
		return
	}
	session, ok := h.resolveSession(ctx, c, req.SessionID)
	if !ok {
		return
	}
	h.streamExtraction(ctx, c, session.ID, req.JDText)
}

func (h *JDHandler) bindRequest(ctx context.Context, c *app.RequestContext) (ProcessJDRequest, bool) {
	var req ProcessJDRequest
	if err := c.BindJSON(&req); err != nil {
		writeError(ctx, c, consts.StatusBadRequest, err, utils.H{"error": "请求体格式错误"})
		return req, false
	}
	if strings.TrimSpace(req.JDText) == "" {
		writeError(ctx, c, consts.StatusBadRequest, processor.ErrEmptyInput, utils.H{"error": "Job description text is required"})
		return req, false
	}
	return req, true
}

// resolveSession 使用已有会话或创建新会话
func (h *JDHandler) resolveSession(ctx context.Context, c *app.RequestContext, sessionID string) (*storage.Session, bool) {
	if sessionID == "" {
		session, err := h.sessions.Create(ctx)
		if err != nil {
			h.logger.Error().Err(err).Msg("创建会话失败")
			writeError(ctx, c, consts.StatusInternalServerError, err, utils.H{"error": "创建会话失败"})
			return nil, false
		}
		return session, true
	}

	session, err := h.sessions.Get(ctx, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		writeError(ctx, c, consts.StatusNotFound, err, utils.H{"error": "会话不存在", "session_id": sessionID})
		return nil, false
	}
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("读取会话失败")
		writeError(ctx, c, consts.StatusInternalServerError, err, utils.H{"error": "读取会话失败"})
		return nil, false
	}
	if session.Status == storage.SessionClosed {
		c.JSON(consts.StatusConflict, utils.H{"error": "会话已关闭", "session_id": sessionID})
		return nil, false
	}
	return session, true
}

func (h *JDHandler) respondWithQuestions(ctx context.Context, c *app.RequestContext, sessionID, input string, set *types.QuestionSet) {
	questions := []types.Question{}
	if set != nil {
		set.SessionID = sessionID
		questions = set.QuestionsWithOptions
	}

	if _, err := h.sessions.Update(ctx, sessionID, func(d *storage.SessionData) {
		d.JDText = input
		d.Scenario = types.ScenarioNeedConversation
		d.Questions = set
	}); err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("保存追问问题到会话失败")
	}

	c.JSON(consts.StatusOK, ConversationResponse{
		Scenario:             types.ScenarioNeedConversation,
		SessionID:            sessionID,
		QuestionsWithOptions: questions,
	})
}

// streamExtraction 以 SSE 输出抽取过程，成功后把最终结果写入会话
func (h *JDHandler) streamExtraction(ctx context.Context, c *app.RequestContext, sessionID, jdText string) {
	logger := h.logger.With().Str("session_id", sessionID).Logger()

	if _, err := h.sessions.Update(ctx, sessionID, func(d *storage.SessionData) {
		d.JDText = jdText
		d.Scenario = types.ScenarioDetailedJD
	}); err != nil {
		logger.Warn().Err(err).Msg("更新会话失败")
	}

	// 超时由处理器转换为 error 事件，客户端断开则静默结束
	runCtx := ctx
	if h.streamTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.streamTimeout)
		defer cancel()
	}

	c.SetStatusCode(consts.StatusOK)
	sink := NewSSEEventSink(h.newPublisher(c))
	logger.Info().Str("jd", tracing.SafeJDContent(jdText)).Msg("开始流式抽取")

	result, err := h.runner.Run(runCtx, processor.RunRequest{SessionID: sessionID, JDText: jdText}, sink)
	if err != nil {
		logger.Warn().Err(err).Int("events_sent", sink.Sent()).Msg("流式抽取未完成")
		return
	}

	// 请求上下文可能随客户端断开而结束，结果仍然保存
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := h.sessions.Update(saveCtx, sessionID, func(d *storage.SessionData) {
		d.Requirements = &result
	}); err != nil {
		logger.Warn().Err(err).Msg("保存抽取结果到会话失败")
		return
	}
	logger.Info().Int("events_sent", sink.Sent()).Msg("流式抽取完成，结果已保存")
}
