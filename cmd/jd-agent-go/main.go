package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jd-agent-go/internal/api/handler"
	"jd-agent-go/internal/api/router"
	"jd-agent-go/internal/config"
	"jd-agent-go/internal/constants"
	appLogger "jd-agent-go/internal/logger"
	"jd-agent-go/internal/storage"
	"jd-agent-go/internal/tracing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

func main() {
	var (
		configPath string
		demo       bool
		offline    bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.BoolVar(&demo, "demo", false, "Process two sample inputs and exit")
	pflag.BoolVar(&offline, "offline", false, "Use canned model output in demo mode")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("加载配置失败")
	}

	logCloser, err := appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		appLogger.Fatal().Err(err).Msg("初始化日志失败")
	}
	defer logCloser.Close()
	logger := appLogger.Logger

	if !(demo && offline) {
		if err := cfg.Validate(); err != nil {
			logger.Fatal().Err(err).Msg("配置校验失败")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.OTLPEndpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("关闭链路追踪失败")
		}
	}()

	sessions, err := storage.NewSessionStore(&cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化会话存储失败")
	}
	defer sessions.Close()

	var llm model.ToolCallingChatModel
	if demo && offline {
		llm = newOfflineModel()
		logger.Info().Msg("演示模式使用固定模型输出")
	} else {
		llm, err = newChatModel(&cfg.LLM, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化模型失败")
		}
		logger.Info().
			Str("model", cfg.LLM.Model).
			Str("base_url", cfg.LLM.BaseURL).
			Str("api_key", tracing.MaskSecret(cfg.LLM.APIKey)).
			Int("qpm", cfg.LLM.QPM).
			Msg("模型初始化成功")
	}

	p, err := newPipeline(llm, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化处理流程失败")
	}

	if demo {
		if err := runDemo(ctx, p, sessions, os.Stdout); err != nil {
			logger.Fatal().Err(err).Msg("演示运行失败")
		}
		return
	}

	jdHandler := handler.NewJDHandler(p.router, p.runner, sessions,
		handler.WithStreamTimeout(config.GetDuration(cfg.Server.StreamTimeout, 3*time.Minute)),
		handler.WithHandlerLogger(logger),
	)

	serverTracer, tracingCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		serverTracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracingCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		glog.CtxInfof(c, "%s %s status=%d cost=%s ua=%s", string(ctx.Method()), string(ctx.Path()), ctx.Response.StatusCode(), time.Since(start),
			tracing.SafeAttributeValue("user_agent", string(ctx.UserAgent()), tracing.MaxHeaderLength))
	})

	router.RegisterRoutes(h, router.Handlers{
		JD:      jdHandler,
		Session: handler.NewSessionHandler(sessions),
	}, cfg.Server.APIKeys)
	logger.Info().Str("service", constants.ServiceName).Str("version", constants.ServiceVersion).Bool("auth", len(cfg.Server.APIKeys) > 0).Msg("HTTP路由注册成功")

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动中")
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}
