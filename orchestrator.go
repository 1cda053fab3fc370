package testreport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-testreport/logging"
	"github.com/ethereum-optimism/infra/op-testreport/metrics"
	"github.com/ethereum-optimism/infra/op-testreport/reporting"
	"github.com/ethereum-optimism/infra/op-testreport/runner"
	"github.com/ethereum-optimism/infra/op-testreport/selectors"
	"github.com/ethereum-optimism/infra/op-testreport/templates"
	"github.com/ethereum-optimism/infra/op-testreport/types"
)

// TestRunner launches the test runner once and streams results to the sinks
type TestRunner interface {
	Run(ctx context.Context, launch runner.Launch, sinks ...logging.ResultSink) (*runner.Result, error)
}

type OrchestratorConfig struct {
	BuildDir    string // Build output root, reports are written below it
	WorkDir     string // Directory selectors are resolved against
	Runner      TestRunner
	Console     io.Writer // Receives the per-test event lines, defaults to stdout
	Metrics     MetricsReporter
	Timeout     time.Duration // Deadline for the runner, 0 means none
	ReportTitle string
	Log         log.Logger
}

// Orchestrator runs the tests once and aggregates the outcome
type Orchestrator struct {
	buildDir    string
	workDir     string
	runner      TestRunner
	console     io.Writer
	metrics     MetricsReporter
	timeout     time.Duration
	reportTitle string
	log         log.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.BuildDir == "" {
		return nil, errors.New("build directory is required")
	}
	if cfg.WorkDir == "" {
		return nil, errors.New("work directory is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("test runner is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Console == nil {
		cfg.Console = os.Stdout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetricsReporter{}
	}
	return &Orchestrator{
		buildDir:    cfg.BuildDir,
		workDir:     cfg.WorkDir,
		runner:      cfg.Runner,
		console:     cfg.Console,
		metrics:     cfg.Metrics,
		timeout:     cfg.Timeout,
		reportTitle: cfg.ReportTitle,
		log:         cfg.Log,
	}, nil
}

// Run launches the runner once with cfg. Failing tests are reported through
// the result outcome, an error means the run itself did not complete.
func (o *Orchestrator) Run(ctx context.Context, cfg types.ExecutionConfig) (*types.TestRunResult, error) {
	result, err := o.run(ctx, cfg)
	switch {
	case IsConfigurationError(err):
		o.metrics.RecordError(metrics.ErrorKindConfiguration)
	case err != nil:
		o.metrics.RecordError(metrics.ErrorKindExecution)
	default:
		o.metrics.RecordRun(result)
	}
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, cfg types.ExecutionConfig) (*types.TestRunResult, error) {
	if err := runner.ValidateRuntimeArgs(cfg.RuntimeArgs()); err != nil {
		return nil, NewConfigurationError(err)
	}
	pkgs, err := selectors.Resolve(o.workDir, cfg.Selectors())
	if err != nil {
		return nil, NewConfigurationError(err)
	}

	runID := uuid.New().String()
	o.log.Info("Starting test run", "run_id", runID, "selectors", pkgs, "logging", cfg.String())
	for _, flag := range cfg.EffectiveFlags() {
		o.log.Debug("Effective runtime flag", "key", flag.Key, "arg", flag.Arg)
	}

	fileSink, err := logging.NewFileSink(o.buildDir)
	if err != nil {
		return nil, NewExecutionError(fmt.Errorf("failed to prepare test result logs: %w", err))
	}
	htmlSink, err := reporting.NewHTMLSink(o.buildDir, o.reportTitle)
	if err != nil {
		return nil, NewExecutionError(fmt.Errorf("failed to prepare HTML report: %w", err))
	}
	console := logging.NewFilteredSink(logging.NewConsoleSink(o.console, cfg.ExceptionFormat()), cfg)

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	res, err := o.runner.Run(ctx, runner.Launch{
		RunID:                  runID,
		RuntimeArgs:            cfg.RuntimeArgs(),
		Selectors:              pkgs,
		CaptureStandardStreams: cfg.CaptureStandardStreams(),
	}, console, fileSink, htmlSink)
	if err != nil {
		o.log.Error("Test run did not complete", "run_id", runID, "err", err)
		return nil, classifyRunError(err)
	}

	reportPath := htmlSink.ReportPath()
	if reportPath == "" {
		return nil, NewExecutionError(errors.New("test report was not rendered"))
	}

	result := &types.TestRunResult{
		RunID:      runID,
		Outcome:    types.OutcomeFor(res.Counts),
		ReportPath: reportPath,
		Counts:     res.Counts,
		Duration:   res.Duration,
	}
	o.log.Info("Test run completed", "run_id", runID, "outcome", result.Outcome,
		"passed", result.Counts.Passed, "skipped", result.Counts.Skipped, "failed", result.Counts.Failed,
		"exit_code", res.ExitCode, "duration", templates.FormatDuration(result.Duration))
	return result, nil
}

func classifyRunError(err error) error {
	switch {
	case errors.Is(err, runner.ErrLaunchRejected):
		return NewConfigurationError(err)
	case errors.Is(err, runner.ErrSinkFailed):
		return NewExecutionError(fmt.Errorf("test results could not be recorded: %w", err))
	default:
		return NewExecutionError(err)
	}
}
