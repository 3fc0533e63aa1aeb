package pipeline

import "fmt"

const (
	// DefaultMaxReviewIterations caps how many review rejections trigger a retry.
	DefaultMaxReviewIterations = 5
	// DefaultMaxSteps is the executed-step ceiling past which a run is
	// treated as runaway.
	DefaultMaxSteps = 40
)

// Pipeline is an ordered set of steps plus the review loop policy.
type Pipeline struct {
	Name  string
	Steps []Step

	// MaxReviewIterations <= 0 means DefaultMaxReviewIterations.
	MaxReviewIterations int
	// MaxSteps <= 0 means DefaultMaxSteps.
	MaxSteps int
	// RetryWith lists the stages inserted after a rejected review. Empty
	// means just the coding stage.
	RetryWith []StageID
}

// Validate checks that every referenced stage has a capability.
func (p *Pipeline) Validate() error {
	if p == nil {
		return fmt.Errorf("pipeline is required")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("pipeline must define at least one stage")
	}
	for i, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("stage %d has no id", i)
		}
		if step.Worker == nil {
			return fmt.Errorf("stage %s has no worker", step.ID)
		}
	}
	if _, ok := p.step(StageReview); !ok {
		return nil
	}
	for _, id := range p.retryWith() {
		if _, ok := p.step(id); !ok {
			return fmt.Errorf("retry stage %s is not defined in the pipeline", id)
		}
	}
	return nil
}

// StageIDs returns the configured stage order.
func (p *Pipeline) StageIDs() []StageID {
	ids := make([]StageID, 0, len(p.Steps))
	for _, s := range p.Steps {
		ids = append(ids, s.ID)
	}
	return ids
}

func (p *Pipeline) step(id StageID) (Step, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

func (p *Pipeline) retryWith() []StageID {
	if len(p.RetryWith) == 0 {
		return []StageID{StageCoding}
	}
	return p.RetryWith
}

func (p *Pipeline) retrySteps() []Step {
	ids := p.retryWith()
	steps := make([]Step, 0, len(ids))
	for _, id := range ids {
		if s, ok := p.step(id); ok {
			steps = append(steps, s)
		}
	}
	return steps
}

func (p *Pipeline) maxReviewIterations() int {
	if p.MaxReviewIterations <= 0 {
		return DefaultMaxReviewIterations
	}
	return p.MaxReviewIterations
}

func (p *Pipeline) maxSteps() int {
	if p.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return p.MaxSteps
}
