package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"support-chatbot-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_CompleteToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tools, ok := body["tools"].([]interface{})
		require.True(t, ok)
		assert.Len(t, tools, 1)
		assert.Equal(t, "auto", body["tool_choice"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"finish_reason":"tool_calls",
			"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function",
			"function":{"name":"escalate_ticket","arguments":"{\"reason\":\"user_requested\"}"}}]}}]}`)
	}))
	defer srv.Close()

	p := NewProvider("key", srv.URL, "gpt-4o-mini", 0.3)
	out, err := p.Complete(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "manager please"}},
		[]llm.ToolDefinition{{Name: "escalate_ticket", Parameters: map[string]interface{}{"type": "object"}}},
	)
	require.NoError(t, err)
	require.True(t, out.WantsTool())
	assert.Equal(t, "escalate_ticket", out.ToolCalls[0].Name)
	assert.Equal(t, "call_1", out.ToolCalls[0].ID)
	assert.JSONEq(t, `{"reason":"user_requested"}`, out.ToolCalls[0].Arguments)
}

func TestProvider_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"id\":\"s\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewProvider("key", srv.URL, "", 0.3)
	stream, err := p.Stream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	defer stream.Close()

	var got string
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got += delta
	}
	assert.Equal(t, "Hello", got)
}

func TestProvider_CompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	_, err := NewProvider("key", srv.URL, "", 0).Complete(context.Background(), nil, nil)
	assert.Error(t, err)
}
