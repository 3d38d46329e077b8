package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200

	// MaxRedisLength Redis键值最大长度
	MaxRedisLength = 100

	// MaxHeaderLength HTTP头最大长度
	MaxHeaderLength = 100

	// MaxJDLength 岗位描述最大长度
	MaxJDLength = 150
)

// maskLookup 需要掩码处理的关键字
var maskLookup = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"authorization": true,
	"email":         true,
	"phone":         true,
}

// SafeAttributeValue 确保属性值安全：
// 名称包含敏感关键字时返回掩码后的值，否则截断到 maxLength
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for keyword := range maskLookup {
		if strings.Contains(lowerName, keyword) {
			return MaskSecret(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskSecret 保留首尾各两个字符，其余用 * 代替
func MaskSecret(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)
	if length <= 4 {
		return strings.Repeat("*", length)
	}
	// "sk-abcdef123456" -> "sk***********56"
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 截断字符串，保留首尾两部分，中间用省略号连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeRedisKey 安全处理Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeJDContent 安全处理岗位描述内容
func SafeJDContent(content string) string {
	return TruncateString(content, MaxJDLength)
}
