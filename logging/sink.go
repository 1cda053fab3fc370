package logging

import (
	"github.com/ethereum-optimism/infra/op-testreport/types"
)

// ResultSink is an interface for different ways of consuming test results
type ResultSink interface {
	// Consume processes a single test result
	Consume(result *types.TestResult, runID string) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// OutputSink is implemented by sinks that also want the runner's raw
// standard output and standard error lines.
type OutputSink interface {
	ConsumeOutput(line string, runID string) error
}

// EventFilter reports whether results of a category should be forwarded
type EventFilter interface {
	Logs(category types.EventCategory) bool
}

// FilteredSink forwards only the results whose category passes the filter.
// Output lines and completion are always forwarded.
type FilteredSink struct {
	sink   ResultSink
	filter EventFilter
}

var _ ResultSink = (*FilteredSink)(nil)
var _ OutputSink = (*FilteredSink)(nil)

// NewFilteredSink wraps sink so that it only sees the categories the filter allows
func NewFilteredSink(sink ResultSink, filter EventFilter) *FilteredSink {
	return &FilteredSink{sink: sink, filter: filter}
}

func (s *FilteredSink) Consume(result *types.TestResult, runID string) error {
	category, err := result.Status.Category()
	if err != nil {
		return err
	}
	if !s.filter.Logs(category) {
		return nil
	}
	return s.sink.Consume(result, runID)
}

func (s *FilteredSink) ConsumeOutput(line string, runID string) error {
	if out, ok := s.sink.(OutputSink); ok {
		return out.ConsumeOutput(line, runID)
	}
	return nil
}

func (s *FilteredSink) Complete(runID string) error {
	return s.sink.Complete(runID)
}
