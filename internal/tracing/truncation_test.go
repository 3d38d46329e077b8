package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
	assert.Equal(t, "ab...yz", TruncateString("abcdefghijklmnopqrstuvwxyz", 7))
	assert.Equal(t, "岗位...描述", TruncateString("岗位要求很长的一段描述", 7))
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "sk***********56", SafeAttributeValue("llm.api_key", "sk-abcdef123456", 100))
	assert.Equal(t, "****", SafeAttributeValue("Authorization", "abcd", 100))
	assert.Equal(t, "plain", SafeAttributeValue("jd.title", "plain", 100))
}
