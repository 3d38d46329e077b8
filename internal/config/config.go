package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RedisConfig Redis配置结构
type RedisConfig struct {
	Address  string `yaml:"address"` // 为空时使用进程内会话存储
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// 连接池设置
	PoolSize     int `yaml:"pool_size"`      // 连接池大小
	MinIdleConns int `yaml:"min_idle_conns"` // 最小空闲连接数
	// 超时设置
	DialTimeoutSeconds  int `yaml:"dial_timeout_seconds"`  // 连接超时(秒)
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`  // 读取超时(秒)
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"` // 写入超时(秒)
	// 重试设置
	MaxRetries        int `yaml:"max_retries"`          // 最大重试次数
	MinRetryBackoffMS int `yaml:"min_retry_backoff_ms"` // 最小重试间隔(毫秒)
	MaxRetryBackoffMS int `yaml:"max_retry_backoff_ms"` // 最大重试间隔(毫秒)
	// 连接生命周期
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`  // 连接最大生命周期(分钟)
	ConnMaxIdleTimeMinutes int `yaml:"conn_max_idle_time_minutes"` // 空闲连接最大生命周期(分钟)
	// 会话过期时间(小时)
	SessionTTLHours int `yaml:"session_ttl_hours"`
}

// Config 应用程序配置
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// LLMConfig 模型调用配置，provider 目前只支持 OpenAI 兼容协议
type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"` // 为空时使用 OpenAI 官方地址
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	ClassifyMaxTokens int     `yaml:"classify_max_tokens"`
	QPM               int     `yaml:"qpm"`                // 每分钟请求数限制
	MaxRetries        int     `yaml:"max_retries"`        // 最大重试次数
	RetryWaitSeconds  int     `yaml:"retry_wait_seconds"` // 重试等待时间(秒)
	RequestTimeout    string  `yaml:"request_timeout"`    // 单次请求超时，例如 "60s"
}

// ServerConfig 定义服务器配置
type ServerConfig struct {
	Address       string   `yaml:"address"`        // 例如 ":8000" or "0.0.0.0:8000"
	APIKeys       []string `yaml:"api_keys"`       // 非空时 /api/v1 需要 Bearer 鉴权（健康检查除外）
	StreamTimeout string   `yaml:"stream_timeout"` // 单次流式抽取的最长时间
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
	File         string `yaml:"file"`          // 非空时同时写入该文件
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // gRPC 地址，例如 "localhost:4317"
	Insecure     bool    `yaml:"insecure"`
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// PipelineConfig 处理流程配置
type PipelineConfig struct {
	// ForceScenario 非空时跳过场景判断，取值 detailed_jd 或 need_conversation
	ForceScenario string `yaml:"force_scenario"`
}

// defaultSearchPaths 未指定配置文件时依次查找的位置
func defaultSearchPaths() []string {
	paths := []string{
		"config.yaml",
		"../config.yaml",
		"../../config.yaml",
	}
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		paths = append(paths, filepath.Join(execDir, "config.yaml"))
	}
	return paths
}

// LoadConfig 加载配置。顺序：默认值 → YAML 文件 → .env 与环境变量。
// configPath 为空时在默认位置查找，找不到文件时只使用默认值和环境变量；
// 显式指定的文件不存在时返回错误。
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在是正常情况
	_ = godotenv.Load()

	config := createDefaultConfig()

	if configPath == "" {
		for _, path := range defaultSearchPaths() {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	} else if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides 从环境变量覆盖配置（如果存在）
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		config.LLM.BaseURL = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		config.LLM.Model = v
	}
	if v := os.Getenv("MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("环境变量 MAX_TOKENS 无效: %w", err)
		}
		config.LLM.MaxTokens = n
	}
	if v := os.Getenv("TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("环境变量 TEMPERATURE 无效: %w", err)
		}
		config.LLM.Temperature = f
	}

	host, port := os.Getenv("HOST"), os.Getenv("PORT")
	if host != "" || port != "" {
		currentHost, currentPort, err := net.SplitHostPort(config.Server.Address)
		if err != nil {
			currentHost, currentPort = "", "8000"
		}
		if host == "" {
			host = currentHost
		}
		if port == "" {
			port = currentPort
		}
		config.Server.Address = net.JoinHostPort(host, port)
	}

	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		config.Redis.Address = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logger.Level = strings.ToLower(v)
	}
	return nil
}

// createDefaultConfig 创建默认配置
func createDefaultConfig() *Config {
	config := &Config{}

	config.LLM.Provider = "openai"
	config.LLM.Model = "gpt-4"
	config.LLM.Temperature = 0.1
	config.LLM.MaxTokens = 2000
	config.LLM.ClassifyMaxTokens = 50
	config.LLM.QPM = 60
	config.LLM.MaxRetries = 3
	config.LLM.RetryWaitSeconds = 1
	config.LLM.RequestTimeout = "120s"

	config.Server.Address = ":8000"
	config.Server.StreamTimeout = "180s"

	// Redis 连接池默认配置，地址为空表示不启用
	config.Redis.PoolSize = 10
	config.Redis.MinIdleConns = 2
	config.Redis.DialTimeoutSeconds = 5
	config.Redis.ReadTimeoutSeconds = 3
	config.Redis.WriteTimeoutSeconds = 3
	config.Redis.MaxRetries = 3
	config.Redis.MinRetryBackoffMS = 8
	config.Redis.MaxRetryBackoffMS = 512
	config.Redis.ConnMaxLifetimeMinutes = 60
	config.Redis.ConnMaxIdleTimeMinutes = 30
	config.Redis.SessionTTLHours = 24

	// 日志默认配置
	config.Logger.Level = "info"
	config.Logger.Format = "pretty"
	config.Logger.TimeFormat = "2006-01-02 15:04:05"
	config.Logger.ReportCaller = false

	config.Tracing.ServiceName = "job-requirement-generator"
	config.Tracing.OTLPEndpoint = "localhost:4317"
	config.Tracing.Insecure = true
	config.Tracing.SampleRatio = 1.0

	return config
}

// CreateSampleConfig 创建一个示例配置文件
func CreateSampleConfig(filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("文件 '%s' 已存在，不会覆盖", filePath)
	}

	data, err := yaml.Marshal(createDefaultConfig())
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入示例配置文件 '%s' 失败: %w", filePath, err)
	}
	return nil
}

// Validate 检查启动服务所必需的配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("缺少模型 API 密钥（llm.api_key 或环境变量 OPENAI_API_KEY）")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens 必须大于0")
	}
	switch c.Pipeline.ForceScenario {
	case "", "detailed_jd", "need_conversation":
	default:
		return fmt.Errorf("pipeline.force_scenario 无效: %s", c.Pipeline.ForceScenario)
	}
	return nil
}

// SessionTTL 会话过期时间
func (c *RedisConfig) SessionTTL() time.Duration {
	hours := c.SessionTTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// GetDuration utility to parse duration strings from config
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
