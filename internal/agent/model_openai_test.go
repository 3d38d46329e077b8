package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *OpenAIChatModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := NewOpenAIChatModel("test-key",
		WithBaseURL(srv.URL+"/v1/"),
		WithModelName("gpt-test"),
		WithClientRetries(0),
	)
	require.NoError(t, err)
	return m
}

func TestNewOpenAIChatModel_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIChatModel("  ")
	assert.Error(t, err)
}

func TestOpenAIChatModel_Generate(t *testing.T) {
	var received map[string]interface{}
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"message":{"role":"assistant","content":"detailed_jd"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	})

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("classify"),
		schema.UserMessage("Senior Go engineer..."),
	}, model.WithMaxTokens(50))

	require.NoError(t, err)
	assert.Equal(t, "detailed_jd", msg.Content)
	assert.Equal(t, "gpt-test", received["model"])
	assert.EqualValues(t, 50, received["max_tokens"])
	messages, ok := received["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIChatModel_GenerateUpstreamError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.Error(t, err)
}

func TestOpenAIChatModel_Stream(t *testing.T) {
	deltas := []string{`{"section":"title",`, `"content":"Go Dev"}`, "\n"}
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			payload, _ := json.Marshal(map[string]interface{}{
				"id": "s1", "object": "chat.completion.chunk", "created": 1, "model": "gpt-test",
				"choices": []map[string]interface{}{
					{"index": 0, "delta": map[string]string{"content": d}},
				},
			})
			_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	sr, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("jd")})
	require.NoError(t, err)
	defer sr.Close()

	var sb strings.Builder
	for {
		msg, err := sr.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sb.WriteString(msg.Content)
	}
	assert.Equal(t, strings.Join(deltas, ""), sb.String())
}

func TestConvertMessages(t *testing.T) {
	out := convertMessages([]*schema.Message{
		schema.SystemMessage("sys"),
		nil,
		schema.UserMessage("user"),
		schema.AssistantMessage("assistant", nil),
	})

	require.Len(t, out, 3)
	assert.NotNil(t, out[0].OfSystem)
	assert.NotNil(t, out[1].OfUser)
	assert.NotNil(t, out[2].OfAssistant)
}
