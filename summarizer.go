package testreport

import (
	"errors"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-testreport/types"
)

const SummaryBanner = "=== TEST RESULTS ==="

// ErrNoResult is returned when asked to summarize a run that produced no result
var ErrNoResult = errors.New("no test run result to summarize")

// ReportSummarizer renders the operator summary of a finished run
type ReportSummarizer struct {
	config types.ExecutionConfig
}

func NewReportSummarizer(config types.ExecutionConfig) *ReportSummarizer {
	return &ReportSummarizer{config: config}
}

// Summarize renders the banner, the logging settings, the counts table and
// the report location. The output only depends on its inputs.
func (s *ReportSummarizer) Summarize(result *types.TestRunResult) (string, error) {
	if result == nil {
		return "", ErrNoResult
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(SummaryBanner)
	b.WriteString("\n")
	b.WriteString("Tests run: ")
	b.WriteString(s.config.String())
	b.WriteString("\n")
	b.WriteString(countsTable(result))
	b.WriteString("\n")
	b.WriteString("Test report: ")
	b.WriteString(fileURL(result.ReportPath))
	b.WriteString("\n")
	return b.String(), nil
}

func countsTable(result *types.TestRunResult) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleDefault)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"Outcome", "Total", "Passed", "Skipped", "Failed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Total", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
	})
	t.AppendRow(table.Row{
		string(result.Outcome),
		result.Counts.Total(),
		result.Counts.Passed,
		result.Counts.Skipped,
		result.Counts.Failed,
	})
	return t.Render()
}
