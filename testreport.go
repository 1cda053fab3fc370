package testreport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/op-testreport/metrics"
	"github.com/ethereum-optimism/infra/op-testreport/runner"
	"github.com/ethereum-optimism/infra/op-testreport/service"
	"github.com/ethereum-optimism/infra/op-testreport/types"
)

// testReport implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &testReport{}

// testReport runs one task of the chain and exits.
type testReport struct {
	config  *Config
	target  string
	chain   *TaskChain
	service *service.Service
	metrics *metrics.Metrics

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// Options overrides collaborators, mainly for tests
type Options struct {
	Runner TestRunner // Defaults to a runner built from the config
	Out    io.Writer  // Defaults to stdout
}

func New(config *Config, target string, opts Options, shutdownCallback func(error)) (*testReport, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if target != TaskTest && target != TaskTestReport {
		return nil, fmt.Errorf("unknown task %s", target)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	config.Log.Debug("Creating test report with config",
		"buildDir", config.BuildDir,
		"workDir", config.WorkDir,
		"runner", config.RunnerBinary,
		"runnerArgs", config.RunnerArgs,
		"timeout", config.Timeout,
		"configFile", config.ConfigFile,
		"target", target)

	testRunner := opts.Runner
	if testRunner == nil {
		r, err := runner.New(runner.Config{
			Binary:   config.RunnerBinary,
			BaseArgs: config.RunnerArgs,
			WorkDir:  config.WorkDir,
			Log:      config.Log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create test runner: %w", err)
		}
		testRunner = r
	}

	m := metrics.New(nil)
	orchestrator, err := NewOrchestrator(OrchestratorConfig{
		BuildDir:    config.BuildDir,
		WorkDir:     config.WorkDir,
		Runner:      testRunner,
		Console:     opts.Out,
		Metrics:     m,
		Timeout:     config.Timeout,
		ReportTitle: filepath.Base(config.WorkDir),
		Log:         config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	chain, err := NewTaskChain(ChainConfig{
		Execution:  config.Execution,
		Runner:     orchestrator,
		Summarizer: NewReportSummarizer(config.Execution),
		Out:        opts.Out,
		Log:        config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task chain: %w", err)
	}

	return &testReport{
		config:  config,
		target:  target,
		chain:   chain,
		metrics: m,
		service: service.New(service.Config{
			Log:         config.Log,
			HealthzAddr: config.HealthzAddr,
			Metrics:     config.MetricsConfig,
			Registry:    m.Registry(),
		}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the target task once.
// Start implements the cliapp.Lifecycle interface.
func (t *testReport) Start(ctx context.Context) error {
	t.running.Store(true)
	if err := t.service.Start(ctx); err != nil {
		t.stopOnError(ctx)
		return NewExecutionError(err)
	}

	t.config.Log.Info("Running task", "task", t.target)
	result, _, err := t.chain.Run(ctx, t.target)
	if err != nil {
		t.config.Log.Error("Task failed", "task", t.target, "state", t.chain.State(), "err", err)
		if !IsConfigurationError(err) && !IsExecutionError(err) {
			err = NewExecutionError(err)
		}
		t.stopOnError(ctx)
		return err
	}

	if result.Outcome == types.OutcomeFailure {
		t.config.Log.Warn("Test run completed with failures, returning exit code 1", "failed", result.Counts.Failed)
		t.stopOnError(ctx)
		return NewTestFailureError(fmt.Sprintf("%d of %d tests failed, see %s",
			result.Counts.Failed, result.Counts.Total(), fileURL(result.ReportPath)))
	}

	t.config.Log.Info("Tests completed, exiting", "state", t.chain.State())
	// Only need to call this when all tests passed
	go func() {
		t.shutdownCallback(nil)
	}()
	return nil
}

// Stop stops the servers started next to the run.
// Stop implements the cliapp.Lifecycle interface.
func (t *testReport) Stop(ctx context.Context) error {
	if !t.running.Load() {
		t.config.Log.Debug("Already stopped, nothing to do")
		return nil
	}
	t.running.Store(false)
	return t.service.Stop(ctx)
}

// Stopped returns true once Stop was called.
// Stopped implements the cliapp.Lifecycle interface.
func (t *testReport) Stopped() bool {
	return !t.running.Load()
}

// stopOnError stops the servers when Start fails, since the lifecycle does
// not call Stop after a failed Start
func (t *testReport) stopOnError(ctx context.Context) {
	if err := t.Stop(context.WithoutCancel(ctx)); err != nil {
		t.config.Log.Error("Failed to stop service", "err", err)
	}
}

// State returns the state of the task chain
func (t *testReport) State() State {
	return t.chain.State()
}
