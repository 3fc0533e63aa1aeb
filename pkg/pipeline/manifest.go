package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/config"
	"github.com/zen-systems/codefactory/pkg/worker"
)

// Manifest is the YAML form of a pipeline.
type Manifest struct {
	Name                string      `yaml:"name"`
	Description         string      `yaml:"description,omitempty"`
	DefaultAdapter      string      `yaml:"default_adapter,omitempty"`
	DefaultModel        string      `yaml:"default_model,omitempty"`
	MaxReviewIterations int         `yaml:"max_review_iterations,omitempty"`
	MaxSteps            int         `yaml:"max_steps,omitempty"`
	RetryWith           []StageID   `yaml:"retry_with,omitempty"`
	Stages              []StageSpec `yaml:"stages"`
}

// StageSpec configures one stage's worker. Empty fields fall back to the
// manifest defaults, then the call policy, then the built-in stage prompt
// and temperature.
type StageSpec struct {
	ID          StageID  `yaml:"id"`
	Adapter     string   `yaml:"adapter,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty"`
}

// LoadManifest reads a pipeline definition from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// DefaultManifest returns the built-in seven-stage pipeline.
func DefaultManifest() *Manifest {
	m := &Manifest{
		Name:                "default",
		MaxReviewIterations: DefaultMaxReviewIterations,
		MaxSteps:            DefaultMaxSteps,
		RetryWith:           []StageID{StageCoding},
	}
	for _, id := range DefaultStages {
		m.Stages = append(m.Stages, StageSpec{ID: id})
	}
	return m
}

// Validate checks the manifest for structural errors.
func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("manifest is required")
	}
	if m.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(m.Stages) == 0 {
		return fmt.Errorf("pipeline must define at least one stage")
	}
	if m.MaxReviewIterations < 0 {
		return fmt.Errorf("max_review_iterations must not be negative")
	}
	if m.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}

	seen := make(map[StageID]struct{})
	for _, stage := range m.Stages {
		if stage.ID == "" {
			return fmt.Errorf("stage id is required")
		}
		if _, ok := seen[stage.ID]; ok {
			return fmt.Errorf("duplicate stage id: %s", stage.ID)
		}
		seen[stage.ID] = struct{}{}
		if stage.Temperature != nil && (*stage.Temperature < 0 || *stage.Temperature > 2) {
			return fmt.Errorf("stage %s temperature must be between 0 and 2", stage.ID)
		}
	}
	for _, id := range m.RetryWith {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("retry_with references unknown stage %s", id)
		}
	}
	return nil
}

// Build resolves a manifest into a runnable pipeline backed by workers.
func Build(m *Manifest, adapters map[string]adapter.Adapter, policy *config.CallPolicy) (*Pipeline, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = config.DefaultCallPolicy()
	}

	p := &Pipeline{
		Name:                m.Name,
		MaxReviewIterations: m.MaxReviewIterations,
		MaxSteps:            m.MaxSteps,
		RetryWith:           m.RetryWith,
	}
	for _, st := range m.Stages {
		adapterName := firstNonEmpty(st.Adapter, m.DefaultAdapter, policy.Default.Adapter)
		impl, ok := adapters[adapterName]
		if !ok {
			return nil, &adapter.ConfigError{Adapter: adapterName, Reason: fmt.Sprintf("adapter for stage %s is not configured", st.ID)}
		}
		model := firstNonEmpty(st.Model, m.DefaultModel)
		if model == "" && adapterName == policy.Default.Adapter {
			model = policy.Default.Model
		}
		if model == "" {
			if models := impl.Models(); len(models) > 0 {
				model = models[0]
			}
		}

		w := worker.New(string(st.ID), adapterName, model, adapters, policy)
		if st.Prompt != "" {
			w.SystemPrompt = worker.WithRule(st.Prompt)
		}
		if st.Temperature != nil {
			w.Temperature = adapter.Temperature(*st.Temperature)
		}
		w.MaxTokens = st.MaxTokens
		p.Steps = append(p.Steps, Step{ID: st.ID, Worker: w})
	}
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
