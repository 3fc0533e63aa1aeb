package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/config"
)

type callTarget struct {
	Adapter string
	Model   string
}

// callWithPolicy sends req to the primary target, retrying transient errors
// with exponential backoff and walking the configured fallback chain.
func callWithPolicy(
	ctx context.Context,
	adapters map[string]adapter.Adapter,
	adapterName string,
	req adapter.Request,
	policy *config.CallPolicy,
) (*adapter.Response, []adapter.CallReport, error) {
	targets := buildTargets(adapterName, req.Model, policy)
	retryCfg := retrySettings(policy)
	var reports []adapter.CallReport
	var lastErr error

	for idx, target := range targets {
		adapterImpl, ok := adapters[target.Adapter]
		if !ok {
			if idx == 0 {
				return nil, reports, &adapter.ConfigError{Adapter: target.Adapter, Reason: "adapter not configured"}
			}
			continue
		}

		attemptReq := req
		attemptReq.Model = target.Model
		for attempt := 0; attempt <= retryCfg.MaxRetries; attempt++ {
			resp, err := adapterImpl.Generate(ctx, attemptReq)
			if err == nil {
				reports = append(reports, adapter.CallReport{
					Adapter:      target.Adapter,
					Model:        target.Model,
					Usage:        normalizeUsage(resp.Usage),
					Retries:      attempt,
					FallbackUsed: idx > 0,
				})
				return resp, reports, nil
			}

			lastErr = err
			if !adapter.IsTransient(err) || attempt == retryCfg.MaxRetries || ctx.Err() != nil {
				reports = append(reports, adapter.CallReport{
					Adapter:      target.Adapter,
					Model:        target.Model,
					Retries:      attempt,
					FallbackUsed: idx > 0,
					Error:        err.Error(),
				})
				break
			}

			backoff := computeBackoff(retryCfg.BaseBackoffMs, retryCfg.MaxBackoffMs, attempt)
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, reports, err
			}
		}
		if ctx.Err() != nil {
			return nil, reports, lastErr
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("adapter call failed")
	}
	return nil, reports, lastErr
}

func buildTargets(adapterName, model string, policy *config.CallPolicy) []callTarget {
	targets := []callTarget{{Adapter: adapterName, Model: model}}
	for _, entry := range policy.ResolveFallbackChain(adapterName, model) {
		targets = append(targets, callTarget{Adapter: entry.Adapter, Model: entry.Model})
	}
	return targets
}

func retrySettings(policy *config.CallPolicy) config.RetryConfig {
	if policy == nil {
		return config.DefaultCallPolicy().Retry
	}
	return policy.Retry
}

func normalizeUsage(usage *adapter.Usage) adapter.Usage {
	if usage == nil {
		return adapter.Usage{}
	}
	u := *usage
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	limit := time.Duration(maxMs) * time.Millisecond
	backoff := time.Duration(baseMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	if backoff > limit {
		return limit
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
