package handler

import (
	"context"
	"errors"

	"jd-agent-go/internal/constants"
	"jd-agent-go/internal/storage"
	"jd-agent-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// SessionHandler 会话的创建、查询和关闭
type SessionHandler struct {
	sessions storage.SessionStore
	logger   zerolog.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions storage.SessionStore) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   log.Logger,
	}
}

// HandleCreateSession POST /api/v1/sessions
func (h *SessionHandler) HandleCreateSession(ctx context.Context, c *app.RequestContext) {
	session, err := h.sessions.Create(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("创建会话失败")
		tracing.RecordError(trace.SpanFromContext(ctx), err, tracing.ErrorTypeRedis)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "创建会话失败"})
		return
	}
	c.JSON(consts.StatusCreated, session)
}

// HandleGetSession GET /api/v1/sessions/:session_id
func (h *SessionHandler) HandleGetSession(ctx context.Context, c *app.RequestContext) {
	id := c.Param("session_id")
	session, err := h.sessions.Get(ctx, id)
	if err != nil {
		h.writeLookupError(ctx, c, id, err)
		return
	}
	c.JSON(consts.StatusOK, session)
}

// HandleCloseSession DELETE /api/v1/sessions/:session_id
func (h *SessionHandler) HandleCloseSession(ctx context.Context, c *app.RequestContext) {
	id := c.Param("session_id")
	if err := h.sessions.CloseSession(ctx, id); err != nil {
		h.writeLookupError(ctx, c, id, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"session_id": id, "status": storage.SessionClosed})
}

func (h *SessionHandler) writeLookupError(ctx context.Context, c *app.RequestContext, id string, err error) {
	if errors.Is(err, storage.ErrSessionNotFound) {
		writeError(ctx, c, consts.StatusNotFound, err, utils.H{"error": "会话不存在", "session_id": id})
		return
	}
	h.logger.Error().Err(err).Str("session_id", id).Msg("会话操作失败")
	tracing.RecordError(trace.SpanFromContext(ctx), err, tracing.ErrorTypeRedis)
	c.JSON(consts.StatusInternalServerError, utils.H{"error": "会话操作失败"})
}

// HandleHealth GET /api/v1/health
func HandleHealth(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"status":  "healthy",
		"service": constants.ServiceName,
		"version": constants.ServiceVersion,
	})
}
