package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/zen-systems/codefactory/pkg/adapter"
)

// ErrorKind classifies why a run failed.
type ErrorKind string

const (
	EmptyInput         ErrorKind = "EmptyInput"
	ConfigurationError ErrorKind = "ConfigurationError"
	ConnectionError    ErrorKind = "ConnectionError"
	Timeout            ErrorKind = "Timeout"
	Interrupted        ErrorKind = "Interrupted"
	RunawayPipeline    ErrorKind = "RunawayPipeline"

	// WorkerEmptyOutput and TestExecutionError are recovered inside Run and
	// only appear in logs and evidence.
	WorkerEmptyOutput    ErrorKind = "WorkerEmptyOutput"
	TestExecutionError   ErrorKind = "TestExecutionError"
	GenericWorkerFailure ErrorKind = "GenericWorkerFailure"
)

var errEmptyInput = errors.New("user request cannot be empty")

// RunError is a classified run failure.
type RunError struct {
	Kind  ErrorKind
	Stage StageID
	Err   error
}

func (e *RunError) Error() string {
	if e == nil {
		return "run error"
	}
	switch e.Kind {
	case EmptyInput:
		return "User request cannot be empty"
	case Interrupted:
		return "Workflow was interrupted by user"
	case Timeout:
		return fmt.Sprintf("Workflow timed out: %v", e.Err)
	case ConfigurationError:
		return fmt.Sprintf("Configuration error: %v", e.Err)
	case ConnectionError:
		return fmt.Sprintf("Connection error: %v. Please check your internet connection.", e.Err)
	case RunawayPipeline:
		return fmt.Sprintf("Workflow runaway detected: %v", e.Err)
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%v", e.Err)
}

func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RunawayError reports that a run executed more steps than its ceiling.
type RunawayError struct {
	Executed int
	Limit    int
}

func (e *RunawayError) Error() string {
	return fmt.Sprintf("executed %d steps, limit is %d", e.Executed, e.Limit)
}

// classify maps a stage failure onto an ErrorKind.
func classify(stage StageID, err error) *RunError {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr
	}
	return &RunError{Kind: kindOf(err), Stage: stage, Err: err}
}

func kindOf(err error) ErrorKind {
	var runaway *RunawayError
	if errors.As(err, &runaway) {
		return RunawayPipeline
	}
	if errors.Is(err, context.Canceled) {
		return Interrupted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	var cfgErr *adapter.ConfigError
	if errors.As(err, &cfgErr) {
		return ConfigurationError
	}
	var adapterErr *adapter.AdapterError
	if errors.As(err, &adapterErr) {
		if adapterErr.IsConfiguration() {
			return ConfigurationError
		}
		if adapter.IsTransient(adapterErr) {
			return ConnectionError
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ConnectionError
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ConnectionError
	}
	return GenericWorkerFailure
}
