package testrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Command describes one subprocess invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Execution captures what a finished (or killed) subprocess produced.
type Execution struct {
	Output   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Executor runs commands. The returned error is reserved for commands that
// could not be started or were interrupted by the caller's context; a
// non-zero exit is reported through Execution.ExitCode.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Execution, error)
}

// ExecExecutor implements Executor with os/exec. Stdout and stderr are
// combined. On timeout the whole process group is killed.
type ExecExecutor struct{}

func (ExecExecutor) Execute(ctx context.Context, c Command) (*Execution, error) {
	runCtx := ctx
	cancel := func() {}
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	}
	defer cancel()

	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	configureCommandProcess(cmd)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		terminateCommandProcess(cmd)
		<-done
		killed := &Execution{Output: output.String(), ExitCode: -1, Duration: time.Since(start)}
		if ctx.Err() != nil {
			return killed, ctx.Err()
		}
		killed.TimedOut = true
		return killed, nil
	}

	result := &Execution{Output: output.String(), Duration: time.Since(start)}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("wait %s: %w", c.Name, waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}
