package adapter

import (
	"context"

	"github.com/zen-systems/codefactory/pkg/transcript"
)

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a conversation to the model and returns its reply.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Request is a provider-neutral chat request.
type Request struct {
	Model       string
	System      string
	Messages    []transcript.Message
	Temperature *float64
	MaxTokens   int
}

// Temperature returns a pointer suitable for Request.Temperature.
func Temperature(v float64) *float64 {
	return &v
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return r.MaxTokens
}

const defaultMaxTokens = 4096
