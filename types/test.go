package types

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the terminal state of a single test as reported by the runner
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
	TestStatusSkip TestStatus = "skip"
)

// Category maps a runner status to the event category used for filtering.
func (s TestStatus) Category() (EventCategory, error) {
	switch s {
	case TestStatusPass:
		return EventPassed, nil
	case TestStatusSkip:
		return EventSkipped, nil
	case TestStatusFail:
		return EventFailed, nil
	default:
		return "", fmt.Errorf("unknown test status %q", string(s))
	}
}

// TestResult captures the outcome of a single test reported by the runner
type TestResult struct {
	Package  string
	Name     string // Empty for package-level results (build failures, TestMain panics)
	Status   TestStatus
	Duration time.Duration
	Output   []string // Output lines emitted by the test, in order
	Error    string   // Failure message, empty unless Status is fail
}

// DisplayName returns the "<package> > <test>" form used in console output
func (tr *TestResult) DisplayName() string {
	if tr.Name == "" {
		return tr.Package
	}
	if tr.Package == "" {
		return tr.Name
	}
	return tr.Package + " > " + tr.Name
}

// ID returns a key unique within a run
func (tr *TestResult) ID() string {
	if tr.Name == "" {
		return tr.Package
	}
	return tr.Package + "::" + tr.Name
}

// FailureMessage renders the failure in the requested exception format.
// SHORT keeps the first non-empty line, FULL keeps every captured line.
func (tr *TestResult) FailureMessage(format ExceptionFormat) string {
	msg := tr.Error
	if msg == "" {
		msg = strings.Join(tr.Output, "\n")
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return ""
	}
	if format == ExceptionFormatFull {
		return msg
	}
	for _, line := range strings.Split(msg, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// SummaryCounts tracks the number of tests per category
type SummaryCounts struct {
	Passed  int
	Skipped int
	Failed  int
}

// Add increments the counter matching the status
func (c *SummaryCounts) Add(status TestStatus) {
	switch status {
	case TestStatusPass:
		c.Passed++
	case TestStatusSkip:
		c.Skipped++
	case TestStatusFail:
		c.Failed++
	}
}

// Total returns the number of counted tests
func (c SummaryCounts) Total() int {
	return c.Passed + c.Skipped + c.Failed
}

// Get returns the count for a category
func (c SummaryCounts) Get(category EventCategory) int {
	switch category {
	case EventPassed:
		return c.Passed
	case EventSkipped:
		return c.Skipped
	case EventFailed:
		return c.Failed
	default:
		return 0
	}
}
