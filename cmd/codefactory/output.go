package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zen-systems/codefactory/pkg/pipeline"
	"github.com/zen-systems/codefactory/pkg/testrunner"
)

func loadManifest(path string) (*pipeline.Manifest, error) {
	if path == "" {
		return pipeline.DefaultManifest(), nil
	}
	m, err := pipeline.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return m, nil
}

func addTestRunnerFlags(cmd *cobra.Command) {
	cmd.Flags().String("python", testrunner.DefaultPython, "python interpreter used to run tests")
	cmd.Flags().Duration("test-timeout", testrunner.DefaultTimeout, "per-file test timeout")
	cmd.Flags().Bool("no-pytest", false, "always use unittest even when pytest is installed")
}

func newTestRunner(python string, timeout time.Duration, noPytest bool) *testrunner.Runner {
	r := testrunner.NewRunner(nil)
	if python != "" {
		r.Python = python
	}
	if timeout > 0 {
		r.Timeout = timeout
	}
	r.UsePytest = !noPytest
	return r
}

func formatProgress(stage pipeline.StageID, state pipeline.StageState) string {
	marker := "..."
	if state == pipeline.StateCompleted {
		marker = "ok"
	}
	return fmt.Sprintf("[%-13s] %-9s %s", stage, state, marker)
}

func printRunResult(out io.Writer, res *pipeline.RunResult) {
	fmt.Fprintf(out, "\nRun %s: %s\n", res.RunID, res.Status)
	if res.Error != "" {
		fmt.Fprintf(out, "Error (%s): %s\n", res.ErrorKind, res.Error)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Stages executed:\t%d\n", len(res.Executed))
	fmt.Fprintf(w, "Messages:\t%d\n", res.TotalMessages)
	fmt.Fprintf(w, "Review iterations:\t%d\n", res.ReviewIterations)
	fmt.Fprintf(w, "Files extracted:\t%d\n", res.FilesExtracted)
	if res.Usage.TotalTokens > 0 {
		fmt.Fprintf(w, "Tokens:\t%d\n", res.Usage.TotalTokens)
	}
	if res.EvidenceDir != "" {
		fmt.Fprintf(w, "Evidence:\t%s\n", res.EvidenceDir)
	}
	w.Flush()

	if res.TestResults != nil {
		fmt.Fprintln(out)
		printTestReport(out, res.TestResults)
	}
}

func printTestReport(out io.Writer, report *testrunner.Report) {
	fmt.Fprintf(out, "Tests: %s\n", report.Summary())
	if report.Message != "" {
		fmt.Fprintf(out, "%s\n", report.Message)
	}
	if len(report.Results) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSTATUS\tRUNNER\tRUN\tFAILED\tERRORS")
	for _, r := range report.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", r.File, r.Status, r.Runner, r.TestsRun, r.Failures, r.Errors)
	}
	w.Flush()
}

func printJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
