package testrunner

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

// pytest exit code for "no tests collected".
const pytestNoTests = 5

type junitSuite struct {
	Tests    int `xml:"tests,attr"`
	Failures int `xml:"failures,attr"`
	Errors   int `xml:"errors,attr"`
	Skipped  int `xml:"skipped,attr"`
}

type junitReport struct {
	XMLName xml.Name
	junitSuite
	Suites []junitSuite `xml:"testsuite"`
}

// ParseJUnitXML reads counts from a JUnit XML report. Both a bare
// <testsuite> root and a <testsuites> wrapper are accepted.
func ParseJUnitXML(data []byte) (Counts, error) {
	var report junitReport
	if err := xml.Unmarshal(data, &report); err != nil {
		return Counts{}, fmt.Errorf("parse junit xml: %w", err)
	}

	switch report.XMLName.Local {
	case "testsuite":
		return countsFromSuite(report.junitSuite), nil
	case "testsuites":
		var c Counts
		for _, s := range report.Suites {
			sc := countsFromSuite(s)
			c.Run += sc.Run
			c.Failures += sc.Failures
			c.Errors += sc.Errors
			c.Skipped += sc.Skipped
		}
		return c, nil
	default:
		return Counts{}, fmt.Errorf("parse junit xml: unexpected root <%s>", report.XMLName.Local)
	}
}

func countsFromSuite(s junitSuite) Counts {
	return Counts{Run: s.Tests, Failures: s.Failures, Errors: s.Errors, Skipped: s.Skipped}
}

// pytestAvailable probes the interpreter for pytest once per Runner.
func (r *Runner) pytestAvailable(ctx context.Context, root string) bool {
	r.probeOnce.Do(func() {
		out, err := r.Executor.Execute(ctx, Command{
			Name:    r.Python,
			Args:    []string{"-m", "pytest", "--version"},
			Dir:     root,
			Env:     []string{"PYTHONDONTWRITEBYTECODE=1"},
			Timeout: r.Timeout,
		})
		r.hasPytest = err == nil && out != nil && !out.TimedOut && out.ExitCode == 0
		if !r.hasPytest {
			r.logf("pytest not available; using unittest")
		}
	})
	return r.hasPytest
}

// runPytest runs file under pytest with a JUnit report. ok is false when the
// result should be discarded in favour of the unittest runner.
func (r *Runner) runPytest(ctx context.Context, root, file string) (res FileResult, ok bool) {
	reportDir, err := os.MkdirTemp("", "codefactory-junit-")
	if err != nil {
		return FileResult{}, false
	}
	defer os.RemoveAll(reportDir)
	reportPath := filepath.Join(reportDir, "report.xml")

	out, err := r.Executor.Execute(ctx, Command{
		Name:    r.Python,
		Args:    []string{"-m", "pytest", file, "-q", "-p", "no:cacheprovider", "--junitxml=" + reportPath},
		Dir:     root,
		Env:     []string{"PYTHONDONTWRITEBYTECODE=1"},
		Timeout: r.Timeout,
	})
	if err != nil || out == nil {
		return FileResult{}, false
	}
	if out.TimedOut {
		return r.timeoutResult(file, runnerPytest), true
	}
	if out.ExitCode == pytestNoTests {
		return FileResult{}, false
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return FileResult{}, false
	}
	counts, err := ParseJUnitXML(data)
	if err != nil {
		r.logf("[%s] unreadable pytest report: %v", file, err)
		return FileResult{}, false
	}
	return classify(file, runnerPytest, out, counts), true
}
