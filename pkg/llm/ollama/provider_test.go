package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-secretary-funnel-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_CompleteWithTools(t *testing.T) {
	var received ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1","done":true,"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_date","arguments":{}}},{"function":{"name":"appointment","arguments":{"dateISO":"2025-06-20T14:00:00-03:00"}}}]}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	got, err := p.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "get_date", Arguments: "not json"}}},
		{Role: llm.RoleTool, Content: `{"iso":"x"}`, ToolCallID: "c1", Name: "get_date"},
	},
		llm.WithTools(llm.Tool{Name: "get_date", Parameters: map[string]interface{}{"type": "object"}}),
		llm.WithMaxTokens(256),
	)
	require.NoError(t, err)

	assert.Equal(t, "llama3.1", received.Model)
	assert.False(t, received.Stream)
	require.Len(t, received.Tools, 1)
	assert.Equal(t, "function", received.Tools[0].Type)
	assert.Equal(t, 256, received.Options.NumPredict)
	assert.JSONEq(t, `{}`, string(received.Messages[1].ToolCalls[0].Function.Arguments))
	assert.Equal(t, "get_date", received.Messages[2].ToolName)

	require.Len(t, got.ToolCalls, 2)
	assert.Equal(t, "get_date", got.ToolCalls[0].Name)
	assert.JSONEq(t, `{}`, got.ToolCalls[0].Arguments)
	assert.JSONEq(t, `{"dateISO":"2025-06-20T14:00:00-03:00"}`, got.ToolCalls[1].Arguments)
	assert.NotEqual(t, got.ToolCalls[0].ID, got.ToolCalls[1].ID)
}

func TestOllamaProvider_ToolChoiceNoneOmitsTools(t *testing.T) {
	var received ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"olá"},"done":true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	reply, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "oi"}},
		llm.WithTools(llm.Tool{Name: "get_date"}), llm.WithToolChoice("none"), llm.WithModel("qwen2.5"))
	require.NoError(t, err)
	assert.Equal(t, "olá", reply)
	assert.Empty(t, received.Tools)
	assert.Equal(t, "qwen2.5", received.Model)
}

func TestOllamaProvider_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "oi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
