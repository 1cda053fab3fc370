package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-testreport/logging"
	"github.com/ethereum-optimism/infra/op-testreport/types"
)

var (
	// ErrLaunchFailed means the runner executable could not be started
	ErrLaunchFailed = errors.New("test runner could not be started")
	// ErrLaunchRejected means the runner exited before emitting any event,
	// which is how it reports flags it does not accept
	ErrLaunchRejected = errors.New("test runner rejected its launch flags")
	// ErrAbnormalExit means the runner exited unsuccessfully without any failing test to explain it
	ErrAbnormalExit = errors.New("test runner exited abnormally")
	// ErrTimeout means the run exceeded its deadline
	ErrTimeout = errors.New("test run exceeded its deadline")
	// ErrSinkFailed means a result sink could not consume or finalize results
	ErrSinkFailed = errors.New("result sink failed")
)

// LaunchError describes a runner invocation that did not follow the result protocol
type LaunchError struct {
	Kind     error // One of the Err* sentinels above
	Args     []string
	ExitCode int
	Stderr   string // Tail of the runner's stderr
	// StderrTruncated is set when older stderr bytes were dropped from Stderr
	StderrTruncated bool
	Output          string // Runner output explaining a rejection, if any
	Err             error
}

func (e *LaunchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if output := strings.TrimSpace(e.Output); output != "" {
		fmt.Fprintf(&b, "\noutput: %s", output)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		if e.StderrTruncated {
			fmt.Fprintf(&b, "\nstderr (truncated): ...%s", stderr)
		} else {
			fmt.Fprintf(&b, "\nstderr: %s", stderr)
		}
	}
	return b.String()
}

func (e *LaunchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CmdBuilder creates the command for the runner process. The returned func
// releases whatever was allocated for the command.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

type Config struct {
	Binary     string   // Runner executable, defaults to "go"
	BaseArgs   []string // Placed before the runtime args, defaults to "test -json"
	WorkDir    string   // Directory the runner is launched in
	Env        []string // Extra KEY=VALUE pairs on top of the current environment
	Log        log.Logger
	CmdBuilder CmdBuilder
	WaitDelay  time.Duration // How long to wait for output pipes after the process is killed
}

// Launch holds the per-run parameters
type Launch struct {
	RunID                  string // Generated when empty
	RuntimeArgs            []string
	Selectors              []string
	CaptureStandardStreams bool
}

// Result summarizes a finished runner invocation
type Result struct {
	RunID    string
	Args     []string
	Counts   types.SummaryCounts
	Events   int
	ExitCode int
	Duration time.Duration
}

type Runner struct {
	binary     string
	baseArgs   []string
	workDir    string
	env        []string
	log        log.Logger
	cmdBuilder CmdBuilder
	waitDelay  time.Duration
	tracer     trace.Tracer
}

func New(cfg Config) (*Runner, error) {
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.BaseArgs == nil {
		cfg.BaseArgs = DefaultBaseArgs
	}
	if cfg.WaitDelay == 0 {
		cfg.WaitDelay = 5 * time.Second
	}

	r := &Runner{
		binary:    cfg.Binary,
		baseArgs:  slices.Clone(cfg.BaseArgs),
		workDir:   cfg.WorkDir,
		env:       slices.Clone(cfg.Env),
		log:       cfg.Log,
		waitDelay: cfg.WaitDelay,
		tracer:    otel.Tracer("test runner"),
	}
	r.cmdBuilder = cfg.CmdBuilder
	if r.cmdBuilder == nil {
		r.cmdBuilder = r.testCommandContext
	}

	cfg.Log.Debug("runner.New()", "binary", r.binary, "baseArgs", r.baseArgs, "workDir", r.workDir)
	return r, nil
}

// Binary returns the runner executable
func (r *Runner) Binary() string {
	return r.binary
}

type streamLine struct {
	stderr bool
	text   []byte
}

// Run launches the runner once and streams every terminal test event to the
// sinks in arrival order. Complete is called on every sink once the stream
// ends. Test failures are not an error.
func (r *Runner) Run(ctx context.Context, launch Launch, sinks ...logging.ResultSink) (*Result, error) {
	runID := launch.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	args := buildArgs(r.baseArgs, launch.RuntimeArgs, launch.Selectors)

	ctx, span := r.tracer.Start(ctx, "test run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("runner.binary", r.binary),
		attribute.StringSlice("runner.args", args),
	)

	r.log.Info("Launching test runner", "run_id", runID, "binary", r.binary, "args", args, "dir", r.workDir)

	cmd, cleanup := r.cmdBuilder(ctx, r.binary, args...)
	defer cleanup()
	if cmd.Dir == "" {
		cmd.Dir = r.workDir
	}
	if cmd.Env == nil && len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = r.waitDelay
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	stderrTail := newTailBuffer(stderrTailBytes)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		launchErr := &LaunchError{Kind: ErrLaunchFailed, Args: args, ExitCode: -1, Err: err}
		span.RecordError(launchErr)
		span.SetStatus(codes.Error, launchErr.Kind.Error())
		return nil, launchErr
	}

	waitCh := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = stdoutW.Close()
		_ = stderrW.Close()
		waitCh <- err
	}()

	lines := make(chan streamLine)
	var wg sync.WaitGroup
	wg.Add(2)
	go readLines(stdoutR, false, lines, &wg)
	go readLines(stderrR, true, lines, &wg)
	go func() {
		wg.Wait()
		close(lines)
	}()

	var sinkErrs []error
	onResult := func(result *types.TestResult) error {
		for _, sink := range sinks {
			if err := sink.Consume(result, runID); err != nil {
				r.log.Error("Result sink failed to consume result", "test", result.ID(), "err", err)
				sinkErrs = append(sinkErrs, err)
			}
		}
		return nil
	}
	onOutput := func(line string) error {
		if !launch.CaptureStandardStreams {
			return nil
		}
		for _, sink := range sinks {
			out, ok := sink.(logging.OutputSink)
			if !ok {
				continue
			}
			if err := out.ConsumeOutput(line, runID); err != nil {
				r.log.Error("Result sink failed to consume output", "err", err)
				sinkErrs = append(sinkErrs, err)
			}
		}
		return nil
	}
	parser := newEventParser(onResult, onOutput)

	for line := range lines {
		if line.stderr {
			_, _ = stderrTail.Write(append(line.text, '\n'))
			_ = onOutput(strings.TrimRight(string(line.text), "\r"))
			continue
		}
		_ = parser.ParseLine(line.text)
	}
	_ = parser.Flush()
	waitErr := <-waitCh

	for _, sink := range sinks {
		if err := sink.Complete(runID); err != nil {
			r.log.Error("Result sink failed to complete", "err", err)
			sinkErrs = append(sinkErrs, err)
		}
	}

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	result := &Result{
		RunID:    runID,
		Args:     args,
		Counts:   parser.Counts(),
		Events:   parser.Events(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}

	span.SetAttributes(
		attribute.Int("runner.exit_code", exitCode),
		attribute.Int("tests.passed", result.Counts.Passed),
		attribute.Int("tests.skipped", result.Counts.Skipped),
		attribute.Int("tests.failed", result.Counts.Failed),
	)
	r.log.Info("Test runner finished", "run_id", runID, "exit_code", exitCode, "events", result.Events,
		"passed", result.Counts.Passed, "skipped", result.Counts.Skipped, "failed", result.Counts.Failed,
		"duration", result.Duration)

	if launchErr := classify(ctx, waitErr, result, stderrTail, parser.Rejections()); launchErr != nil {
		span.RecordError(launchErr)
		span.SetStatus(codes.Error, launchErr.Kind.Error())
		return result, launchErr
	}
	if len(sinkErrs) > 0 {
		err := fmt.Errorf("%w: %w", ErrSinkFailed, errors.Join(sinkErrs...))
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrSinkFailed.Error())
		return result, err
	}
	return result, nil
}

// classify maps the way the process ended to a launch error, or nil when it
// followed the result protocol.
func classify(ctx context.Context, waitErr error, result *Result, stderr *tailBuffer, rejections []string) *LaunchError {
	newErr := func(kind, err error) *LaunchError {
		return &LaunchError{
			Kind:            kind,
			Args:            result.Args,
			ExitCode:        result.ExitCode,
			Stderr:          stderr.String(),
			StderrTruncated: stderr.Truncated(),
			Err:             err,
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newErr(ErrTimeout, ctx.Err())
	}
	if len(rejections) > 0 {
		launchErr := newErr(ErrLaunchRejected, nil)
		launchErr.Output = strings.Join(rejections, "\n")
		return launchErr
	}
	if waitErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return newErr(ErrAbnormalExit, ctx.Err())
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return newErr(ErrAbnormalExit, waitErr)
	}
	switch {
	case result.ExitCode > 0 && result.Events == 0:
		return newErr(ErrLaunchRejected, nil)
	case result.Counts.Failed == 0:
		return newErr(ErrAbnormalExit, waitErr)
	default:
		// The failing tests explain the exit status
		return nil
	}
}

func readLines(r io.Reader, stderr bool, out chan<- streamLine, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		text := slices.Clone(scanner.Bytes())
		out <- streamLine{stderr: stderr, text: text}
	}
	// Keep draining so the process never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
}

func (r *Runner) testCommandContext(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Dir = r.workDir
	env := append(os.Environ(), r.env...)
	// Propagate the trace context so instrumented tests join the run's trace
	cmd.Env = telemetry.InstrumentEnvironment(ctx, env)
	return cmd, func() {}
}
