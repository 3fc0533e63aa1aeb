package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/evidence"
	"github.com/zen-systems/codefactory/pkg/testrunner"
	"github.com/zen-systems/codefactory/pkg/transcript"
	"github.com/zen-systems/codefactory/pkg/workspace"
)

const (
	// FixRequiredMarker in a review reply sends the work back for another pass.
	FixRequiredMarker = "FIX_REQUIRED"
	// FallbackReply replaces a blank worker reply.
	FallbackReply = "I will now generate the required files as instructed."

	// DefaultWorkspace is used when RunOptions.WorkspacePath is empty.
	DefaultWorkspace = "workspace"

	StatusSuccess = "success"
	StatusError   = "error"

	evidenceOutputLimit = 16 * 1024
)

// TestRunner runs the tests found in a workspace. *testrunner.Runner
// implements it.
type TestRunner interface {
	RunAll(ctx context.Context, root string) *testrunner.Report
}

// RunOptions configures pipeline execution.
type RunOptions struct {
	Input         string
	WorkspacePath string
	EvidenceDir   string
	SkipTests     bool
	TestRunner    TestRunner
	Progress      func(stage StageID, state StageState)
	Logger        func(format string, args ...any)
}

// RunResult is the outcome of a run. Status is "success" or "error".
type RunResult struct {
	RunID            string               `json:"run_id"`
	Status           string               `json:"status"`
	Error            string               `json:"error,omitempty"`
	ErrorKind        ErrorKind            `json:"error_kind,omitempty"`
	TotalMessages    int                  `json:"total_messages"`
	ReviewIterations int                  `json:"review_iterations"`
	FilesExtracted   int                  `json:"files_extracted"`
	TestResults      *testrunner.Report   `json:"test_results,omitempty"`
	Executed         []StageID            `json:"executed"`
	Stages           []StageExecution     `json:"stages"`
	Usage            adapter.Usage        `json:"usage"`
	Transcript       []transcript.Message `json:"messages,omitempty"`
	EvidenceDir      string               `json:"evidence_dir,omitempty"`
	Err              *RunError            `json:"-"`
}

// callReporter is implemented by capabilities that expose their adapter calls.
type callReporter interface {
	LastCalls() []adapter.CallReport
}

// SeedMessages returns the messages every transcript starts with.
func SeedMessages(request string, first StageID) []transcript.Message {
	system := fmt.Sprintf(`You are the controller of a multi-stage software factory.

Rules:
- Every file must be produced as a block: a line made of "===BEGIN_FILE:"
  directly followed by the filename and "===", then the file content, then
  the closing line %q.
- Never respond with an empty message.
- Hand off clearly to the next stage.

User request:
%s`, workspace.EndMarker, strings.TrimSpace(request))

	return []transcript.Message{
		{Role: transcript.RoleSystem, Content: system},
		{Role: transcript.RoleAssistant, Content: fmt.Sprintf("Controller: %s must start on the user request.", first)},
	}
}

type run struct {
	p       *Pipeline
	opts    RunOptions
	result  *RunResult
	writer  *evidence.Writer
	record  evidence.RunRecord
	tr      *transcript.Transcript
	queue   *workQueue
	started time.Time
}

// Run executes p against opts.Input. It never returns nil; every failure is
// reported through the result's Status, Error and ErrorKind.
func Run(ctx context.Context, p *Pipeline, opts RunOptions) *RunResult {
	r := &run{
		p:       p,
		opts:    opts,
		result:  &RunResult{RunID: uuid.NewString(), Executed: []StageID{}, Stages: []StageExecution{}},
		started: time.Now().UTC(),
	}

	if strings.TrimSpace(opts.Input) == "" {
		r.logf("empty user request")
		return r.fail(&RunError{Kind: EmptyInput, Err: errEmptyInput})
	}
	if err := p.Validate(); err != nil {
		r.logf("invalid pipeline: %v", err)
		return r.fail(&RunError{Kind: ConfigurationError, Err: err})
	}

	root := opts.WorkspacePath
	if root == "" {
		root = DefaultWorkspace
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	r.openEvidence(root)

	r.tr = transcript.New(SeedMessages(opts.Input, p.Steps[0].ID)...)
	r.queue = newWorkQueue(p.Steps)
	r.logf("run %s started: pipeline %s, %d stages", r.result.RunID, p.Name, len(p.Steps))

	if err := r.execute(ctx); err != nil {
		return r.fail(err)
	}

	r.logf("all stages completed; extracting files")
	files, err := workspace.Extract(r.tr.Messages(), root, r.opts.Logger)
	if err != nil {
		return r.fail(&RunError{Kind: ConfigurationError, Err: err})
	}
	r.result.FilesExtracted = files

	if !opts.SkipTests {
		r.result.TestResults = r.runTests(ctx, root)
		if r.writer != nil {
			r.saveEvidence("tests", r.writer.WriteTests(r.result.TestResults))
		}
	}

	r.result.Status = StatusSuccess
	r.finish()
	return r.result
}

func (r *run) execute(ctx context.Context) *RunError {
	reviewLimit := r.p.maxReviewIterations()
	stepLimit := r.p.maxSteps()
	executed := 0

	for {
		step, ok := r.queue.Next()
		if !ok {
			return nil
		}
		r.result.Stages = append(r.result.Stages, StageExecution{Stage: step.ID, State: StatePending, Index: executed})
		current := &r.result.Stages[len(r.result.Stages)-1]

		if executed > stepLimit {
			r.logf("runaway detected after %d steps; remaining queue %v", executed, r.queue.Remaining())
			return &RunError{Kind: RunawayPipeline, Stage: step.ID, Err: &RunawayError{Executed: executed, Limit: stepLimit}}
		}
		if err := ctx.Err(); err != nil {
			return classify(step.ID, err)
		}

		current.State = StateRunning
		r.progress(step.ID, StateRunning)
		r.logf("[%s] executing step %d", step.ID, executed)

		start := time.Now()
		reply, err := generate(ctx, step, r.tr.Messages())
		stageRecord := evidence.StageRecord{
			Index:          executed,
			Name:           string(step.ID),
			Worker:         workerName(step.Worker),
			DurationMillis: time.Since(start).Milliseconds(),
		}
		if rep, ok := step.Worker.(callReporter); ok {
			stageRecord.Calls = rep.LastCalls()
			r.addUsage(stageRecord.Calls)
		}
		if err != nil {
			stageRecord.Error = err.Error()
			r.writeStage(stageRecord)
			r.logf("[%s] failed: %v", step.ID, err)
			return classify(step.ID, err)
		}

		r.logf("[%s] reply length: %d", step.ID, len(reply))
		if strings.TrimSpace(reply) == "" {
			r.logf("[%s] %s: substituting fallback reply", step.ID, WorkerEmptyOutput)
			reply = FallbackReply
			stageRecord.Fallback = true
		}
		r.tr.Append(transcript.RoleAssistant, reply)

		current.State = StateCompleted
		r.result.Executed = append(r.result.Executed, step.ID)
		r.progress(step.ID, StateCompleted)
		executed++

		if step.ID == StageReview && strings.Contains(reply, FixRequiredMarker) {
			stageRecord.FixRequired = true
			r.result.ReviewIterations++
			if r.result.ReviewIterations < reviewLimit {
				retry := r.p.retrySteps()
				r.queue.InsertNext(retry...)
				r.logf("[%s] fix required (%d/%d); re-running %v", step.ID, r.result.ReviewIterations, reviewLimit, stageIDs(retry))
			} else {
				r.logf("[%s] review limit reached (%d); forcing approval", step.ID, reviewLimit)
			}
		}

		stageRecord.OutputHash = evidence.HashString(reply)
		stageRecord.Output = evidence.Truncate(reply, evidenceOutputLimit)
		r.writeStage(stageRecord)
	}
}

// generate converts a panicking worker into a GenericWorkerFailure.
func generate(ctx context.Context, step Step, messages []transcript.Message) (reply string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &RunError{Kind: GenericWorkerFailure, Stage: step.ID, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	return step.Worker.Generate(ctx, messages)
}

// runTests never lets a test runner failure fail the run.
func (r *run) runTests(ctx context.Context, root string) (report *testrunner.Report) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logf("%s: %v", TestExecutionError, rec)
			report = &testrunner.Report{
				Status:  testrunner.StatusError,
				Message: fmt.Sprintf("Failed to execute tests: %v", rec),
				Results: []testrunner.FileResult{},
			}
		}
	}()

	runner := r.opts.TestRunner
	if runner == nil {
		tr := testrunner.NewRunner(nil)
		tr.Logger = r.opts.Logger
		runner = tr
	}
	report = runner.RunAll(ctx, root)
	if report == nil {
		panic("test runner returned no report")
	}
	r.logf("test execution completed: %s", report.Summary())
	return report
}

func (r *run) fail(err *RunError) *RunResult {
	r.result.Status = StatusError
	r.result.Err = err
	r.result.Error = err.Error()
	r.result.ErrorKind = err.Kind
	r.logf("run failed (%s): %s", err.Kind, r.result.Error)
	r.finish()
	return r.result
}

func (r *run) finish() {
	if r.tr != nil {
		r.result.Transcript = r.tr.Messages()
		r.result.TotalMessages = r.tr.Len()
	}
	if r.writer == nil {
		return
	}
	r.record.FinishedAt = time.Now().UTC()
	r.record.Status = r.result.Status
	r.record.Error = r.result.Error
	r.record.ErrorKind = string(r.result.ErrorKind)
	r.record.ReviewIterations = r.result.ReviewIterations
	r.record.FilesExtracted = r.result.FilesExtracted
	for _, id := range r.result.Executed {
		r.record.Executed = append(r.record.Executed, string(id))
	}
	r.saveEvidence("run", r.writer.WriteRun(r.record))
	r.saveEvidence("transcript", r.writer.WriteTranscript(r.result.Transcript))
}

func (r *run) openEvidence(root string) {
	if r.opts.EvidenceDir == "" {
		return
	}
	if err := os.MkdirAll(r.opts.EvidenceDir, 0755); err != nil {
		r.logf("evidence disabled: %v", err)
		return
	}
	writer, err := evidence.NewWriter(r.opts.EvidenceDir, r.result.RunID)
	if err != nil {
		r.logf("evidence disabled: %v", err)
		return
	}
	r.writer = writer
	r.result.EvidenceDir = writer.RunDir()
	r.record = evidence.RunRecord{
		ID:           r.result.RunID,
		Pipeline:     r.p.Name,
		StartedAt:    r.started,
		InputHash:    evidence.HashString(r.opts.Input),
		Workspace:    root,
		ToolVersions: map[string]string{"go": runtime.Version()},
	}
	r.saveEvidence("run", r.writer.WriteRun(r.record))
}

func (r *run) writeStage(record evidence.StageRecord) {
	if r.writer != nil {
		r.saveEvidence("stage "+record.Name, r.writer.WriteStage(record))
	}
}

func (r *run) saveEvidence(what string, err error) {
	if err != nil {
		r.logf("write %s evidence: %v", what, err)
	}
}

func (r *run) addUsage(calls []adapter.CallReport) {
	for _, c := range calls {
		r.result.Usage.PromptTokens += c.Usage.PromptTokens
		r.result.Usage.CompletionTokens += c.Usage.CompletionTokens
		r.result.Usage.TotalTokens += c.Usage.TotalTokens
	}
}

func (r *run) progress(stage StageID, state StageState) {
	if r.opts.Progress != nil {
		r.opts.Progress(stage, state)
	}
}

func (r *run) logf(format string, args ...any) {
	if r.opts.Logger != nil {
		r.opts.Logger(format, args...)
	}
}

func stageIDs(steps []Step) []StageID {
	ids := make([]StageID, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.ID)
	}
	return ids
}

func workerName(c Capability) string {
	if s, ok := c.(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}
