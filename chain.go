package testreport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-testreport/registry"
	"github.com/ethereum-optimism/infra/op-testreport/types"
)

// Task names, also exposed as CLI commands
const (
	TaskTest       = "test"
	TaskTestReport = "testReport"
)

// State tracks the progress of the task chain
type State string

const (
	StateNotStarted       State = "NOT_STARTED"
	StateRunning          State = "RUNNING"
	StateCompletedSuccess State = "COMPLETED_SUCCESS"
	StateCompletedFailure State = "COMPLETED_FAILURE"
	StateSummarized       State = "SUMMARIZED"
	StateExecutionError   State = "EXECUTION_ERROR"
)

var transitions = map[State][]State{
	StateNotStarted:       {StateRunning},
	StateRunning:          {StateCompletedSuccess, StateCompletedFailure, StateExecutionError},
	StateCompletedSuccess: {StateSummarized},
	StateCompletedFailure: {StateSummarized},
}

// RunStage executes the tests once
type RunStage interface {
	Run(ctx context.Context, cfg types.ExecutionConfig) (*types.TestRunResult, error)
}

// Summarizer renders the summary of a finished run
type Summarizer interface {
	Summarize(result *types.TestRunResult) (string, error)
}

type ChainConfig struct {
	Execution  types.ExecutionConfig
	Runner     RunStage
	Summarizer Summarizer
	Out        io.Writer // Receives the summary, defaults to stdout
	Log        log.Logger
}

// TaskChain runs the test task and, for testReport, summarizes its result.
// A chain runs once.
type TaskChain struct {
	registry   *registry.Registry
	execution  types.ExecutionConfig
	runner     RunStage
	summarizer Summarizer
	out        io.Writer
	log        log.Logger

	mu      sync.Mutex
	state   State
	result  *types.TestRunResult
	summary string
}

func NewTaskChain(cfg ChainConfig) (*TaskChain, error) {
	if cfg.Runner == nil {
		return nil, errors.New("run stage is required")
	}
	if cfg.Summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	c := &TaskChain{
		registry:   registry.NewRegistry(registry.Config{Log: cfg.Log}),
		execution:  cfg.Execution,
		runner:     cfg.Runner,
		summarizer: cfg.Summarizer,
		out:        cfg.Out,
		log:        cfg.Log,
		state:      StateNotStarted,
	}

	if err := c.registry.Register(registry.Task{
		Name:        TaskTest,
		Description: "Runs the tests and renders the HTML report",
		Action:      c.runTests,
	}); err != nil {
		return nil, err
	}
	if err := c.registry.Register(registry.Task{
		Name:        TaskTestReport,
		Description: "Prints the summary of the test run",
		DependsOn:   []string{TaskTest},
		Action:      c.summarize,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// Tasks returns the names of the tasks the chain can run
func (c *TaskChain) Tasks() []string {
	return c.registry.Tasks()
}

// Run executes target after its dependencies. The summary is empty unless
// the testReport task ran.
func (c *TaskChain) Run(ctx context.Context, target string) (*types.TestRunResult, string, error) {
	if err := c.registry.Run(ctx, target); err != nil {
		return c.Result(), "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.summary, nil
}

// State returns the current state of the chain
func (c *TaskChain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the result of the test task, nil until it completed
func (c *TaskChain) Result() *types.TestRunResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func (c *TaskChain) runTests(ctx context.Context) error {
	if err := c.transition(StateRunning); err != nil {
		return err
	}

	result, err := c.runner.Run(ctx, c.execution)
	if err != nil {
		if terr := c.transition(StateExecutionError); terr != nil {
			return errors.Join(err, terr)
		}
		return err
	}

	next := StateCompletedSuccess
	if result.Outcome == types.OutcomeFailure {
		next = StateCompletedFailure
	}
	c.mu.Lock()
	c.result = result
	c.mu.Unlock()
	return c.transition(next)
}

func (c *TaskChain) summarize(ctx context.Context) error {
	summary, err := c.summarizer.Summarize(c.Result())
	if err != nil {
		return err
	}
	if _, err := io.WriteString(c.out, summary); err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}

	c.mu.Lock()
	c.summary = summary
	c.mu.Unlock()
	return c.transition(StateSummarized)
}

func (c *TaskChain) transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, allowed := range transitions[c.state] {
		if allowed == to {
			c.log.Debug("Task chain state change", "from", c.state, "to", to)
			c.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal task chain transition from %s to %s", c.state, to)
}
