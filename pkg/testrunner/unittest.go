package testrunner

import (
	"regexp"
	"strconv"
	"strings"
)

// Counts are the test tallies recovered from runner output.
type Counts struct {
	Run      int
	Failures int
	Errors   int
	Skipped  int
}

var (
	ranPattern    = regexp.MustCompile(`\bRan (\d+) tests?\b`)
	failedPattern = regexp.MustCompile(`(?m)^FAILED \(([^)]*)\)`)
	okPattern     = regexp.MustCompile(`(?m)^OK \(([^)]*)\)`)
)

// ParseUnittestOutput recovers counts from the summary unittest prints at the
// end of a verbose run:
//
//	Ran 3 tests in 0.002s
//	FAILED (failures=1, errors=1, skipped=1)
//
// The run count comes from the last "Ran N test(s)" anywhere in the output,
// with or without the duration suffix. This depends on unittest's exact
// English wording. Anything it does not recognise is counted as zero; it
// never fails.
func ParseUnittestOutput(output string) Counts {
	var c Counts
	if m := ranPattern.FindAllStringSubmatch(output, -1); len(m) > 0 {
		c.Run, _ = strconv.Atoi(m[len(m)-1][1])
	}

	var summary string
	if m := failedPattern.FindStringSubmatch(output); m != nil {
		summary = m[1]
	} else if m := okPattern.FindStringSubmatch(output); m != nil {
		summary = m[1]
	}

	for _, part := range strings.Split(summary, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		switch key {
		case "failures":
			c.Failures = n
		case "errors":
			c.Errors = n
		case "skipped":
			c.Skipped = n
		}
	}
	return c
}
