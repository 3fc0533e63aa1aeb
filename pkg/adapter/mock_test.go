package adapter

import (
	"context"
	"strings"
	"testing"

	"github.com/zen-systems/codefactory/pkg/transcript"
)

func TestMockAdapterKeyedBySystem(t *testing.T) {
	a := NewMockAdapterWithResponses(map[string]string{"review": "APPROVED"}, "")

	resp, err := a.Generate(context.Background(), Request{System: "review"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "APPROVED" || resp.Model != "mock-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp, err = a.Generate(context.Background(), Request{
		System:   "other",
		Messages: []transcript.Message{{Role: transcript.RoleAssistant, Content: "last turn"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(resp.Content, "mock response:") || !strings.Contains(resp.Content, "last turn") {
		t.Fatalf("unexpected default response: %q", resp.Content)
	}
}
