package testrunner

import "fmt"

// Per-file statuses.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// StatusNoTests is the aggregate status when no test files were found.
const StatusNoTests = "no_tests"

// FileResult is the outcome of running one test file.
type FileResult struct {
	File       string `json:"file"`
	Status     string `json:"status"`
	TestsRun   int    `json:"tests_run"`
	Failures   int    `json:"failures"`
	Errors     int    `json:"errors"`
	Skipped    int    `json:"skipped"`
	Output     string `json:"output"`
	ReturnCode int    `json:"return_code"`
	Runner     string `json:"runner"`
}

// Report aggregates the results of every test file in a workspace.
type Report struct {
	Status      string       `json:"status"`
	Message     string       `json:"message"`
	TotalTests  int          `json:"total_tests"`
	TotalPassed int          `json:"total_passed"`
	TotalFailed int          `json:"total_failed"`
	TotalErrors int          `json:"total_errors"`
	Results     []FileResult `json:"test_results"`
}

// Summary renders the totals on one line.
func (r *Report) Summary() string {
	return fmt.Sprintf("%s: %d tests, %d passed, %d failed, %d errors",
		r.Status, r.TotalTests, r.TotalPassed, r.TotalFailed, r.TotalErrors)
}

// Aggregate rolls per-file results into a report. Passed tests per file are
// run minus failures minus errors, floored at zero.
func Aggregate(results []FileResult) *Report {
	if len(results) == 0 {
		return &Report{
			Status:  StatusNoTests,
			Message: "No test files found in workspace",
			Results: []FileResult{},
		}
	}

	report := &Report{
		Message: fmt.Sprintf("Executed %d test file(s)", len(results)),
		Results: results,
	}
	for _, res := range results {
		report.TotalTests += res.TestsRun
		report.TotalPassed += max(0, res.TestsRun-res.Failures-res.Errors)
		report.TotalFailed += res.Failures
		report.TotalErrors += res.Errors
	}

	report.Status = StatusPassed
	if report.TotalFailed+report.TotalErrors > 0 {
		report.Status = StatusFailed
	}
	return report
}

func degradedReport(reason string) *Report {
	return &Report{
		Status:  StatusError,
		Message: "Failed to execute tests: " + reason,
		Results: []FileResult{},
	}
}
