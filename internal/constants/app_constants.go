package constants

import "time"

const (
	// ServiceName 对外暴露的服务名，健康检查和追踪资源使用
	ServiceName = "job-requirement-generator"
	// ServiceVersion 服务版本
	ServiceVersion = "1.0.0"

	// DefaultSessionTTL 会话默认过期时间
	DefaultSessionTTL = 24 * time.Hour
)
