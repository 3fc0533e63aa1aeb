package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/config"
	"github.com/zen-systems/codefactory/pkg/transcript"
)

type scriptedAdapter struct {
	name    string
	errs    []error
	content string
	calls   int
	lastReq adapter.Request
}

func (s *scriptedAdapter) Name() string     { return s.name }
func (s *scriptedAdapter) Models() []string { return []string{"m"} }

func (s *scriptedAdapter) Generate(_ context.Context, req adapter.Request) (*adapter.Response, error) {
	s.calls++
	s.lastReq = req
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &adapter.Response{Content: s.content, Adapter: s.name, Model: req.Model, Usage: &adapter.Usage{PromptTokens: 3, CompletionTokens: 4}}, nil
}

func fastPolicy() *config.CallPolicy {
	p := config.DefaultCallPolicy()
	p.Retry = config.RetryConfig{MaxRetries: 2, BaseBackoffMs: 1, MaxBackoffMs: 2}
	return p
}

func TestWorkerSendsPromptAndTemperature(t *testing.T) {
	primary := &scriptedAdapter{name: "primary", content: "done"}
	w := New(StageReview, "primary", "m1", map[string]adapter.Adapter{"primary": primary}, fastPolicy())

	msgs := []transcript.Message{{Role: transcript.RoleSystem, Content: "build a thing"}}
	out, err := w.Generate(context.Background(), msgs)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "done" {
		t.Fatalf("unexpected reply %q", out)
	}
	if primary.lastReq.Model != "m1" {
		t.Fatalf("expected model m1, got %q", primary.lastReq.Model)
	}
	if primary.lastReq.Temperature == nil || *primary.lastReq.Temperature != 0.3 {
		t.Fatalf("expected review temperature 0.3, got %v", primary.lastReq.Temperature)
	}
	if !strings.Contains(primary.lastReq.System, "FIX_REQUIRED") || !strings.HasSuffix(primary.lastReq.System, nonEmptyRule) {
		t.Fatalf("unexpected system prompt %q", primary.lastReq.System)
	}
	calls := w.LastCalls()
	if len(calls) != 1 || calls[0].Usage.TotalTokens != 7 {
		t.Fatalf("unexpected call reports %+v", calls)
	}
}

func TestWorkerRetriesTransientErrors(t *testing.T) {
	primary := &scriptedAdapter{
		name:    "primary",
		content: "ok",
		errs:    []error{&adapter.AdapterError{Adapter: "primary", Status: 503, Err: errors.New("unavailable")}},
	}
	w := New(StageCoding, "primary", "m", map[string]adapter.Adapter{"primary": primary}, fastPolicy())

	if _, err := w.Generate(context.Background(), nil); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if primary.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", primary.calls)
	}
	if calls := w.LastCalls(); len(calls) != 1 || calls[0].Retries != 1 {
		t.Fatalf("unexpected reports %+v", calls)
	}
}

func TestWorkerDoesNotRetryConfigurationErrors(t *testing.T) {
	authErr := &adapter.AdapterError{Adapter: "primary", Status: 401, Err: errors.New("bad key")}
	primary := &scriptedAdapter{name: "primary", errs: []error{authErr}}
	w := New(StageCoding, "primary", "m", map[string]adapter.Adapter{"primary": primary}, fastPolicy())

	_, err := w.Generate(context.Background(), nil)
	var got *adapter.AdapterError
	if !errors.As(err, &got) || got.Status != 401 {
		t.Fatalf("expected wrapped 401, got %v", err)
	}
	if primary.calls != 1 {
		t.Fatalf("expected a single call, got %d", primary.calls)
	}
}

func TestWorkerFallsBack(t *testing.T) {
	down := &adapter.AdapterError{Adapter: "groq", Status: 500, Err: errors.New("down")}
	primary := &scriptedAdapter{name: "groq", errs: []error{down, down, down}}
	backup := &scriptedAdapter{name: "openrouter", content: "from backup"}

	policy := fastPolicy()
	policy.Fallback = config.FallbackConfig{
		AllowFallback: true,
		FallbackChain: map[string][]config.RouteTarget{
			"groq": {{Adapter: "openrouter", Model: "small"}},
		},
	}
	w := New(StageCoding, "groq", "big", map[string]adapter.Adapter{"groq": primary, "openrouter": backup}, policy)

	out, err := w.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "from backup" || backup.lastReq.Model != "small" {
		t.Fatalf("unexpected fallback result %q model=%q", out, backup.lastReq.Model)
	}
	calls := w.LastCalls()
	if len(calls) != 2 || calls[0].Error == "" || !calls[1].FallbackUsed {
		t.Fatalf("unexpected reports %+v", calls)
	}
}

func TestWorkerMissingAdapterIsConfigError(t *testing.T) {
	w := New(StageCoding, "absent", "m", map[string]adapter.Adapter{}, fastPolicy())
	_, err := w.Generate(context.Background(), nil)
	var cfgErr *adapter.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestWorkerStopsOnCancel(t *testing.T) {
	down := &adapter.AdapterError{Adapter: "primary", Status: 503, Err: errors.New("busy")}
	primary := &scriptedAdapter{name: "primary", errs: []error{down, down, down}}
	policy := config.DefaultCallPolicy()
	policy.Retry = config.RetryConfig{MaxRetries: 2, BaseBackoffMs: 5000, MaxBackoffMs: 5000}
	w := New(StageCoding, "primary", "m", map[string]adapter.Adapter{"primary": primary}, policy)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := w.Generate(ctx, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestDefaultTemperature(t *testing.T) {
	cases := map[string]float64{
		StageReview:       0.3,
		StageUI:           0.8,
		StageCoding:       0.7,
		StageRequirements: 0.7,
		"custom":          0.7,
	}
	for stage, want := range cases {
		if got := DefaultTemperature(stage); got != want {
			t.Fatalf("%s: expected %v, got %v", stage, want, got)
		}
	}
}

func TestDefaultPromptMentionsMarkers(t *testing.T) {
	for _, stage := range []string{StageRequirements, StageCoding, StageQA, StageDeployment, StageUI, StageDocumentation, "custom"} {
		if !strings.Contains(DefaultPrompt(stage), "===BEGIN_FILE:") {
			t.Fatalf("%s prompt missing file markers", stage)
		}
	}
}

func TestComputeBackoffCaps(t *testing.T) {
	if got := computeBackoff(200, 2000, 0); got != 200*time.Millisecond {
		t.Fatalf("attempt 0: %v", got)
	}
	if got := computeBackoff(200, 2000, 2); got != 800*time.Millisecond {
		t.Fatalf("attempt 2: %v", got)
	}
	if got := computeBackoff(200, 2000, 10); got != 2*time.Second {
		t.Fatalf("attempt 10: %v", got)
	}
}
