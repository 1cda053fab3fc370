package testreport

import (
	"github.com/ethereum-optimism/infra/op-testreport/types"
)

// MetricsReporter is responsible for reporting metrics from test runs.
type MetricsReporter interface {
	RecordRun(result *types.TestRunResult)
	RecordError(kind string)
}

type noopMetricsReporter struct{}

func (noopMetricsReporter) RecordRun(*types.TestRunResult) {}

func (noopMetricsReporter) RecordError(string) {}
