package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zen-systems/codefactory/pkg/transcript"
)

func TestDeepSeekGenerateSendsRoles(t *testing.T) {
	var got deepseekRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}],"usage":{"total_tokens":7}}`))
	}))
	defer srv.Close()

	a, err := newDeepSeekAdapter("key", srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	resp, err := a.Generate(context.Background(), Request{
		Model:       "deepseek-coder",
		System:      "rules",
		Temperature: Temperature(0.3),
		Messages: []transcript.Message{
			{Role: transcript.RoleSystem, Content: "request"},
			{Role: transcript.RoleAssistant, Content: "prior"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "hello" || resp.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected request messages: %+v", got.Messages)
	}
	if got.Temperature == nil || *got.Temperature != 0.3 {
		t.Fatalf("expected temperature to be forwarded")
	}
}

func TestDeepSeekStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"busy"}}`))
	}))
	defer srv.Close()

	a, err := newDeepSeekAdapter("key", srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	_, err = a.Generate(context.Background(), Request{Model: "deepseek-chat"})
	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) || adapterErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 AdapterError, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatalf("expected 503 to be transient")
	}
}
