package ratelimit

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"jd-agent-go/internal/agent"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitedChatModel_GenerateRetries(t *testing.T) {
	mock := agent.NewMockChatModel(
		agent.MockResponse{Error: errors.New("429 Too Many Requests")},
		agent.MockResponse{Content: "ok"},
	)
	m := NewRateLimitedChatModel(mock, 6000).WithRetryPolicy(time.Millisecond, 2)

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})

	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, 2, mock.Calls())
}

func TestRateLimitedChatModel_StreamOpenRetried(t *testing.T) {
	mock := agent.NewMockChatModel(
		agent.MockResponse{Error: errors.New("connection refused")},
		agent.MockResponse{Chunks: []string{"x", "y"}},
	)
	m := NewRateLimitedChatModel(mock, 6000).WithRetryPolicy(time.Millisecond, 2)

	sr, err := m.Stream(context.Background(), nil)
	require.NoError(t, err)
	defer sr.Close()

	var got string
	for {
		msg, err := sr.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got += msg.Content
	}
	assert.Equal(t, "xy", got)
	assert.Equal(t, 2, mock.Calls())
}

func TestRateLimitedChatModel_WithToolsSharesLimiter(t *testing.T) {
	m := NewRateLimitedChatModel(agent.NewMockChatModel(agent.MockResponse{Content: "a"}), 60)

	withTools, err := m.WithTools(nil)
	require.NoError(t, err)

	proxy, ok := withTools.(*RateLimitedChatModel)
	require.True(t, ok)
	assert.Same(t, m.limiter, proxy.limiter)
}
