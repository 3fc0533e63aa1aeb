package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/config"
	"github.com/zen-systems/codefactory/pkg/worker"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `name: python-app
default_adapter: groq
default_model: llama-3.3-70b-versatile
max_review_iterations: 3
retry_with: [coding, review]
stages:
  - id: requirements
  - id: coding
    model: llama-3.1-8b-instant
  - id: review
    temperature: 0.1
    prompt: "Reply APPROVED or FIX_REQUIRED."
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.Equal(t, "python-app", m.Name)
	assert.Equal(t, 3, m.MaxReviewIterations)
	assert.Equal(t, []StageID{StageCoding, StageReview}, m.RetryWith)
	require.Len(t, m.Stages, 3)
	require.NotNil(t, m.Stages[2].Temperature)
	assert.InDelta(t, 0.1, *m.Stages[2].Temperature, 1e-9)

	adapters := map[string]adapter.Adapter{"groq": adapter.NewMockAdapter()}
	p, err := Build(m, adapters, config.DefaultCallPolicy())
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, []StageID{StageRequirements, StageCoding, StageReview}, p.StageIDs())

	coding := p.Steps[1].Worker.(*worker.Worker)
	assert.Equal(t, "groq", coding.Adapter)
	assert.Equal(t, "llama-3.1-8b-instant", coding.Model)
	assert.InDelta(t, 0.7, *coding.Temperature, 1e-9)

	review := p.Steps[2].Worker.(*worker.Worker)
	assert.Equal(t, "llama-3.3-70b-versatile", review.Model)
	assert.InDelta(t, 0.1, *review.Temperature, 1e-9)
	assert.Contains(t, review.SystemPrompt, "Reply APPROVED or FIX_REQUIRED.")
	assert.Contains(t, review.SystemPrompt, "non-empty response")
}

func TestLoadManifestErrors(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadManifest(writeManifest(t, "stages: [unterminated"))
	assert.Error(t, err)
}

func TestManifestValidate(t *testing.T) {
	neg := -0.5
	cases := map[string]*Manifest{
		"no name":        {Stages: []StageSpec{{ID: StageCoding}}},
		"no stages":      {Name: "x"},
		"empty id":       {Name: "x", Stages: []StageSpec{{}}},
		"duplicate":      {Name: "x", Stages: []StageSpec{{ID: StageCoding}, {ID: StageCoding}}},
		"unknown retry":  {Name: "x", Stages: []StageSpec{{ID: StageCoding}}, RetryWith: []StageID{"fixer"}},
		"negative steps": {Name: "x", Stages: []StageSpec{{ID: StageCoding}}, MaxSteps: -1},
		"bad temp":       {Name: "x", Stages: []StageSpec{{ID: StageCoding, Temperature: &neg}}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, m.Validate())
		})
	}
	assert.NoError(t, DefaultManifest().Validate())
}

func TestDefaultManifestStages(t *testing.T) {
	m := DefaultManifest()
	ids := make([]StageID, 0, len(m.Stages))
	for _, s := range m.Stages {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, DefaultStages, ids)
	assert.Equal(t, DefaultMaxReviewIterations, m.MaxReviewIterations)
	assert.Equal(t, DefaultMaxSteps, m.MaxSteps)
}

func TestBuildUsesPolicyDefaultModel(t *testing.T) {
	policy := config.DefaultCallPolicy()
	policy.Default = config.RouteTarget{Adapter: "openrouter", Model: "meta-llama/llama-3.2-3b-instruct"}
	adapters := map[string]adapter.Adapter{"openrouter": adapter.NewMockAdapter()}

	p, err := Build(DefaultManifest(), adapters, policy)
	require.NoError(t, err)
	w := p.Steps[0].Worker.(*worker.Worker)
	assert.Equal(t, "openrouter", w.Adapter)
	assert.Equal(t, "meta-llama/llama-3.2-3b-instruct", w.Model)
}

func TestBuildMissingAdapter(t *testing.T) {
	m := DefaultManifest()
	m.Stages[1].Adapter = "deepseek"
	_, err := Build(m, map[string]adapter.Adapter{"anthropic": adapter.NewMockAdapter()}, nil)
	var cfgErr *adapter.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "deepseek", cfgErr.Adapter)
}

func TestPipelineValidateRetryStages(t *testing.T) {
	w := CapabilityFunc(nil)
	p := &Pipeline{Name: "x", Steps: []Step{{ID: StageReview, Worker: w}}}
	assert.Error(t, p.Validate(), "default retry stage coding is missing")

	p.RetryWith = []StageID{StageReview}
	assert.NoError(t, p.Validate())

	noReview := &Pipeline{Name: "x", Steps: []Step{{ID: StageQA, Worker: w}}}
	assert.NoError(t, noReview.Validate())
}
