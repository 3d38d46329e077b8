package logger // 定义了日志记录器相关的组件和功能

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Logger 默认的全局日志实例，应用中其他地方可以直接使用
	Logger = log.Logger
)

// Config 日志配置结构体，用于定义日志系统的行为
type Config struct {
	Level        string `json:"level" yaml:"level"`                 // 日志级别：debug, info, warn, error等
	Format       string `json:"format" yaml:"format"`               // 日志格式：json（机器可读）或 pretty（人类可读的控制台格式）
	TimeFormat   string `json:"time_format" yaml:"time_format"`     // 时间戳的格式
	ReportCaller bool   `json:"report_caller" yaml:"report_caller"` // 是否在日志中报告调用者的文件名和行号
	File         string `json:"file" yaml:"file"`                   // 非空时同时追加写入该文件
}

// Init 初始化日志系统，替换包内、zerolog 以及 Hertz 的全局日志。
// 返回的 io.Closer 用于关闭日志文件，未配置文件时关闭是空操作。
func Init(config Config) (io.Closer, error) {
	return InitWithWriter(config, os.Stdout)
}

// InitWithWriter 与 Init 相同，但控制台部分写入 out
func InitWithWriter(config Config, out io.Writer) (io.Closer, error) {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.TimeFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	} else {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	var output io.Writer = out
	if config.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: config.TimeFormat,
		}
	}

	var closer io.Closer = nopCloser{}
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		fileWriter, err := os.OpenFile(config.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("无法打开日志文件 %s: %w", config.File, err)
		}
		output = zerolog.MultiLevelWriter(output, fileWriter)
		closer = fileWriter
	}

	contextLogger := zerolog.New(output).Level(level).With().Timestamp()
	if config.ReportCaller {
		contextLogger = contextLogger.Caller()
	}

	Logger = contextLogger.Logger()
	log.Logger = Logger

	hlog.SetLogger(hertzadapter.From(Logger))
	hlog.SetLevel(hertzLevel(level))
	return closer, nil
}

// hertzLevel 把 zerolog 级别映射为 Hertz 的日志级别
func hertzLevel(level zerolog.Level) hlog.Level {
	switch level {
	case zerolog.TraceLevel:
		return hlog.LevelTrace
	case zerolog.DebugLevel:
		return hlog.LevelDebug
	case zerolog.WarnLevel:
		return hlog.LevelWarn
	case zerolog.ErrorLevel:
		return hlog.LevelError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return hlog.LevelFatal
	default:
		return hlog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Debug 开始一条调试级别的日志事件
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info 开始一条信息级别的日志事件
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn 开始一条警告级别的日志事件
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error 开始一条错误级别的日志事件
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal 开始一条致命错误级别的日志事件，记录后程序将退出
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// Ctx 从上下文中获取日志记录器，没有时返回全局日志记录器
func Ctx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &Logger
}

// WithContext 将全局日志记录器添加到上下文中，并返回一个新的上下文
func WithContext(ctx context.Context) context.Context {
	return Logger.WithContext(ctx)
}
