package config

import "fmt"

// CallPolicy controls how workers call their adapters.
type CallPolicy struct {
	Default  RouteTarget    `yaml:"default"`
	Retry    RetryConfig    `yaml:"retry,omitempty"`
	Fallback FallbackConfig `yaml:"fallback,omitempty"`
}

// RouteTarget specifies an adapter and model combination.
type RouteTarget struct {
	Adapter string `yaml:"adapter"`
	Model   string `yaml:"model"`
}

func (t RouteTarget) String() string {
	return fmt.Sprintf("%s/%s", t.Adapter, t.Model)
}

// RetryConfig defines retry and backoff behavior for transient adapter errors.
type RetryConfig struct {
	MaxRetries    int `yaml:"max_retries,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// FallbackConfig defines adapter/model fallbacks. Keys are either
// "adapter/model" or a bare adapter name.
type FallbackConfig struct {
	AllowFallback bool                     `yaml:"allow_fallback,omitempty"`
	FallbackChain map[string][]RouteTarget `yaml:"fallback_chain,omitempty"`
}

// DefaultCallPolicy returns the policy used when no config file is present.
func DefaultCallPolicy() *CallPolicy {
	p := &CallPolicy{}
	applyPolicyDefaults(p)
	return p
}

// ResolveFallbackChain returns the fallback targets for adapter/model.
func (p *CallPolicy) ResolveFallbackChain(adapterName, model string) []RouteTarget {
	if p == nil || !p.Fallback.AllowFallback || p.Fallback.FallbackChain == nil {
		return nil
	}
	key := RouteTarget{Adapter: adapterName, Model: model}.String()
	if chain, ok := p.Fallback.FallbackChain[key]; ok {
		return chain
	}
	if chain, ok := p.Fallback.FallbackChain[adapterName]; ok {
		return chain
	}
	return nil
}

func applyPolicyDefaults(p *CallPolicy) {
	if p == nil {
		return
	}
	if p.Default.Adapter == "" {
		p.Default.Adapter = "anthropic"
	}
	if p.Default.Model == "" && p.Default.Adapter == "anthropic" {
		p.Default.Model = "claude-sonnet-4-20250514"
	}
	if p.Retry.MaxRetries == 0 {
		p.Retry.MaxRetries = 2
	}
	if p.Retry.BaseBackoffMs == 0 {
		p.Retry.BaseBackoffMs = 200
	}
	if p.Retry.MaxBackoffMs == 0 {
		p.Retry.MaxBackoffMs = 2000
	}
	if p.Retry.MaxBackoffMs < p.Retry.BaseBackoffMs {
		p.Retry.MaxBackoffMs = p.Retry.BaseBackoffMs
	}
}
