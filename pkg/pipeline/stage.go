package pipeline

import (
	"context"

	"github.com/zen-systems/codefactory/pkg/transcript"
	"github.com/zen-systems/codefactory/pkg/worker"
)

// StageID names a pipeline stage.
type StageID string

// Built-in stages.
const (
	StageRequirements  StageID = worker.StageRequirements
	StageCoding        StageID = worker.StageCoding
	StageReview        StageID = worker.StageReview
	StageDocumentation StageID = worker.StageDocumentation
	StageQA            StageID = worker.StageQA
	StageDeployment    StageID = worker.StageDeployment
	StageUI            StageID = worker.StageUI
)

// DefaultStages is the built-in stage order.
var DefaultStages = []StageID{
	StageRequirements,
	StageCoding,
	StageReview,
	StageDocumentation,
	StageQA,
	StageDeployment,
	StageUI,
}

// StageState is the lifecycle state of one step execution.
type StageState string

const (
	StatePending   StageState = "pending"
	StateRunning   StageState = "running"
	StateCompleted StageState = "completed"
)

// Capability produces a stage's reply to the transcript so far.
type Capability interface {
	Generate(ctx context.Context, messages []transcript.Message) (string, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, messages []transcript.Message) (string, error)

func (f CapabilityFunc) Generate(ctx context.Context, messages []transcript.Message) (string, error) {
	return f(ctx, messages)
}

// Step binds a stage to the capability that runs it.
type Step struct {
	ID     StageID
	Worker Capability
}

// StageExecution records one step as it moves through the queue.
type StageExecution struct {
	Stage StageID    `json:"stage"`
	State StageState `json:"state"`
	Index int        `json:"index"`
}
