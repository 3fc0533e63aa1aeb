// Package testrunner executes generated Python test files and aggregates
// their results.
package testrunner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds each test file's subprocess.
	DefaultTimeout = 30 * time.Second
	// DefaultPython is the interpreter used when none is configured.
	DefaultPython = "python3"

	runnerUnittest = "unittest"
	runnerPytest   = "pytest"
)

// Runner discovers and runs test files one at a time.
type Runner struct {
	Executor  Executor
	Python    string
	Timeout   time.Duration
	UsePytest bool
	Logger    func(format string, args ...any)

	probeOnce sync.Once
	hasPytest bool
}

// NewRunner returns a Runner with default interpreter and timeout. Pytest is
// tried first when it is installed.
func NewRunner(executor Executor) *Runner {
	if executor == nil {
		executor = ExecExecutor{}
	}
	return &Runner{
		Executor:  executor,
		Python:    DefaultPython,
		Timeout:   DefaultTimeout,
		UsePytest: true,
	}
}

// RunAll runs every discovered test file under root and aggregates the
// results. It never panics and never returns nil; orchestration failures
// produce a report with status "error".
func (r *Runner) RunAll(ctx context.Context, root string) (report *Report) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logf("test execution failed: %v", rec)
			report = degradedReport(fmt.Sprint(rec))
		}
	}()

	files, err := Discover(root)
	if err != nil {
		r.logf("test discovery failed: %v", err)
		return degradedReport(err.Error())
	}
	if len(files) == 0 {
		r.logf("no test files found in %s", root)
		return Aggregate(nil)
	}

	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		res := r.RunFile(ctx, root, file)
		r.logf("[%s] %s via %s: run=%d failures=%d errors=%d", res.File, res.Status, res.Runner, res.TestsRun, res.Failures, res.Errors)
		results = append(results, res)
	}

	report = Aggregate(results)
	r.logf("tests %s", report.Summary())
	return report
}

// RunFile runs a single test file that lives directly under root.
func (r *Runner) RunFile(ctx context.Context, root, file string) FileResult {
	if r.UsePytest && r.pytestAvailable(ctx, root) {
		if res, ok := r.runPytest(ctx, root, file); ok {
			return res
		}
		r.logf("[%s] pytest run unusable; falling back to unittest", file)
	}
	return r.runUnittest(ctx, root, file)
}

func (r *Runner) runUnittest(ctx context.Context, root, file string) FileResult {
	module := strings.TrimSuffix(file, ".py")
	out, err := r.Executor.Execute(ctx, Command{
		Name:    r.Python,
		Args:    []string{"-m", "unittest", module, "-v"},
		Dir:     root,
		Env:     []string{"PYTHONDONTWRITEBYTECODE=1"},
		Timeout: r.Timeout,
	})
	if err != nil || out == nil {
		if err == nil {
			err = fmt.Errorf("no execution result")
		}
		return FileResult{
			File:       file,
			Status:     StatusError,
			Errors:     1,
			Output:     fmt.Sprintf("Error executing tests: %v", err),
			ReturnCode: -1,
			Runner:     runnerUnittest,
		}
	}
	if out.TimedOut {
		return r.timeoutResult(file, runnerUnittest)
	}
	return classify(file, runnerUnittest, out, ParseUnittestOutput(out.Output))
}

func (r *Runner) timeoutResult(file, runner string) FileResult {
	return FileResult{
		File:       file,
		Status:     StatusTimeout,
		Errors:     1,
		Output:     fmt.Sprintf("Test execution timed out after %s", r.Timeout),
		ReturnCode: -1,
		Runner:     runner,
	}
}

func classify(file, runner string, out *Execution, counts Counts) FileResult {
	status := StatusPassed
	if out.ExitCode != 0 {
		status = StatusFailed
	}
	return FileResult{
		File:       file,
		Status:     status,
		TestsRun:   counts.Run,
		Failures:   counts.Failures,
		Errors:     counts.Errors,
		Skipped:    counts.Skipped,
		Output:     out.Output,
		ReturnCode: out.ExitCode,
		Runner:     runner,
	}
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger(format, args...)
	}
}
