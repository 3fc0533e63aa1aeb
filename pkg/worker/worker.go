// Package worker implements pipeline stages on top of LLM adapters.
package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/config"
	"github.com/zen-systems/codefactory/pkg/transcript"
)

// Worker answers a transcript on behalf of one pipeline stage.
type Worker struct {
	Stage        string
	SystemPrompt string
	Adapter      string
	Model        string
	Temperature  *float64
	MaxTokens    int

	Adapters map[string]adapter.Adapter
	Policy   *config.CallPolicy
	Logger   func(format string, args ...any)

	lastCalls []adapter.CallReport
}

// Generate sends the transcript to the configured adapter and returns the
// reply text. An empty reply is returned as-is; callers decide how to treat it.
func (w *Worker) Generate(ctx context.Context, messages []transcript.Message) (string, error) {
	if w.Adapter == "" {
		return "", &adapter.ConfigError{Adapter: w.Stage, Reason: "no adapter configured"}
	}

	req := adapter.Request{
		Model:       w.Model,
		System:      w.SystemPrompt,
		Messages:    messages,
		Temperature: w.Temperature,
		MaxTokens:   w.MaxTokens,
	}

	resp, reports, err := callWithPolicy(ctx, w.Adapters, w.Adapter, req, w.Policy)
	w.lastCalls = reports
	for _, r := range reports {
		w.logf("[%s] %s/%s retries=%d fallback=%t tokens=%d", w.Stage, r.Adapter, r.Model, r.Retries, r.FallbackUsed, r.Usage.TotalTokens)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", w.Stage, err)
	}
	return resp.Content, nil
}

// LastCalls returns the adapter calls made by the most recent Generate.
func (w *Worker) LastCalls() []adapter.CallReport {
	out := make([]adapter.CallReport, len(w.lastCalls))
	copy(out, w.lastCalls)
	return out
}

func (w *Worker) String() string {
	model := w.Model
	if model == "" {
		model = "default"
	}
	return fmt.Sprintf("%s (%s/%s)", w.Stage, w.Adapter, model)
}

func (w *Worker) logf(format string, args ...any) {
	if w.Logger != nil {
		w.Logger(format, args...)
	}
}

// New builds a worker for stage with the built-in prompt and temperature.
func New(stage, adapterName, model string, adapters map[string]adapter.Adapter, policy *config.CallPolicy) *Worker {
	return &Worker{
		Stage:        stage,
		SystemPrompt: DefaultPrompt(stage),
		Adapter:      adapterName,
		Model:        model,
		Temperature:  adapter.Temperature(DefaultTemperature(stage)),
		Adapters:     adapters,
		Policy:       policy,
	}
}

const nonEmptyRule = "RULE: You must always produce a non-empty response."

// WithRule appends the non-empty response rule every stage prompt carries.
func WithRule(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nonEmptyRule
	}
	return prompt + "\n\n" + nonEmptyRule
}
