package adapter

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	responses       map[string]string
	defaultResponse string
	Usage           *Usage
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter whose replies are keyed
// by the request's system prompt.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic reply for the request.
func (a *MockAdapter) Generate(_ context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "mock-1"
	}
	if response, ok := a.responses[req.System]; ok {
		return &Response{Content: response, Adapter: a.Name(), Model: model, Usage: a.Usage}, nil
	}

	var last string
	if n := len(req.Messages); n > 0 {
		last = strings.TrimSpace(req.Messages[n-1].Content)
	}
	content := fmt.Sprintf("%s\n%s", a.defaultResponse, last)
	return &Response{Content: content, Adapter: a.Name(), Model: model, Usage: a.Usage}, nil
}
