package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"rate limited", &AdapterError{Status: 429}, true},
		{"server error", fmt.Errorf("wrapped: %w", &AdapterError{Status: 503}), true},
		{"unauthorized", &AdapterError{Status: 401}, false},
		{"temporary flag", &AdapterError{Temporary: true}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("%s: IsTransient=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAdapterErrorIsConfiguration(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404} {
		if !(&AdapterError{Status: status}).IsConfiguration() {
			t.Fatalf("expected status %d to be a configuration error", status)
		}
	}
	if (&AdapterError{Status: 500}).IsConfiguration() {
		t.Fatalf("expected 500 not to be a configuration error")
	}
}

func TestMissingKeysReturnConfigError(t *testing.T) {
	_, err := NewAnthropicAdapter("")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if _, err := NewGroqAdapter(""); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for groq, got %v", err)
	}
	if _, err := NewDeepSeekAdapter(""); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for deepseek, got %v", err)
	}
}
