package router

import (
	"context"

	"jd-agent-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

const healthPath = "/api/v1/health"

// Handlers 路由依赖的处理器
type Handlers struct {
	JD      *handler.JDHandler
	Session *handler.SessionHandler
}

// RegisterRoutes 注册 API 路由。apiKeys 非空时除健康检查外的接口都需要 Bearer 鉴权。
func RegisterRoutes(h *server.Hertz, handlers Handlers, apiKeys []string) {
	api := h.Group("/api/v1")
	if len(apiKeys) > 0 {
		api.Use(newKeyAuth(apiKeys))
	}

	api.GET("/health", handler.HandleHealth)

	api.POST("/jd/process", handlers.JD.HandleProcessJD)
	api.POST("/jd/stream", handlers.JD.HandleStreamJD)

	api.POST("/sessions", handlers.Session.HandleCreateSession)
	api.GET("/sessions/:session_id", handlers.Session.HandleGetSession)
	api.DELETE("/sessions/:session_id", handlers.Session.HandleCloseSession)
}

func newKeyAuth(apiKeys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, key := range apiKeys {
		allowed[key] = struct{}{}
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithFilter(func(c context.Context, ctx *app.RequestContext) bool {
			return string(ctx.Path()) == healthPath
		}),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			_, ok := allowed[key]
			return ok, nil
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "未授权的请求"})
		}),
	)
}
