package templates

import (
	"fmt"
	"html/template"
	"time"

	"github.com/ethereum-optimism/infra/op-testreport/types"
)

// GetTemplateFunc returns the template functions shared by the HTML report
func GetTemplateFunc() template.FuncMap {
	return template.FuncMap{
		"formatDuration": FormatDuration,
		"getStatusClass": getStatusString,
		"getStatusText": func(status types.TestStatus) string {
			category, err := status.Category()
			if err != nil {
				return "UNKNOWN"
			}
			return string(category)
		},
		"getOutcomeClass": func(outcome types.Outcome) string {
			if outcome == types.OutcomeFailure {
				return "fail"
			}
			return "pass"
		},
		"successRate": SuccessRate,
		"failureMessage": func(result *types.TestResult) string {
			return result.FailureMessage(types.ExceptionFormatFull)
		},
	}
}

// FormatDuration renders durations below a second in milliseconds
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// SuccessRate returns the share of non-failed tests as a percentage string.
// An empty run is reported as 100%.
func SuccessRate(counts types.SummaryCounts) string {
	total := counts.Total()
	if total == 0 {
		return "100%"
	}
	return fmt.Sprintf("%d%%", (total-counts.Failed)*100/total)
}

// getStatusString returns a consistent lowercase status string
func getStatusString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "pass"
	case types.TestStatusFail:
		return "fail"
	case types.TestStatusSkip:
		return "skip"
	default:
		return "unknown"
	}
}
