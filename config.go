package testreport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-testreport/flags"
	"github.com/ethereum-optimism/infra/op-testreport/registry"
	"github.com/ethereum-optimism/infra/op-testreport/types"
)

// Config holds the application configuration
type Config struct {
	BuildDir      string                // Absolute build output root
	WorkDir       string                // Absolute directory the runner is launched in
	RunnerBinary  string                // Test runner executable
	RunnerArgs    []string              // Arguments placed before the runtime args
	Timeout       time.Duration         // Deadline for the whole run, 0 means none
	Execution     types.ExecutionConfig // Frozen per-run settings
	ConfigFile    string                // Task file the settings were merged from, if any
	HealthzAddr   string
	MetricsConfig opmetrics.CLIConfig
	Log           log.Logger
}

// NewConfig creates a new Config from cli context. Values from the task file
// given with --config override flag defaults, flags set explicitly override
// the task file.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	var tf registry.TaskFile
	var baseDir string
	configFile := ctx.String(flags.ConfigFile.Name)
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for task file '%s': %w", configFile, err)
		}
		loaded, err := registry.LoadTaskFile(abs)
		if err != nil {
			return nil, err
		}
		tf = *loaded
		configFile = abs
		baseDir = filepath.Dir(abs)
	}

	workDir := ctx.String(flags.WorkDir.Name)
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		workDir = wd
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for work directory '%s': %w", workDir, err)
	}
	if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("work directory %s does not exist", workDir)
	}

	buildDir := pickString(ctx, flags.BuildDir, tf.BuildDir)
	if tf.BuildDir != "" && !ctx.IsSet(flags.BuildDir.Name) && !filepath.IsAbs(buildDir) {
		// Relative paths in the task file are relative to the file
		buildDir = filepath.Join(baseDir, buildDir)
	}
	if buildDir == "" {
		return nil, errors.New("build directory is required")
	}
	buildDir, err = filepath.Abs(buildDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for build directory '%s': %w", buildDir, err)
	}

	eventsValue := ctx.String(flags.Events.Name)
	if !ctx.IsSet(flags.Events.Name) && tf.Events != nil {
		eventsValue = strings.Join(tf.Events, ",")
	}
	events, err := flags.ParseEvents(eventsValue)
	if err != nil {
		return nil, err
	}

	format, err := types.ParseExceptionFormat(pickString(ctx, flags.ExceptionFormat, tf.ExceptionFormat))
	if err != nil {
		return nil, err
	}

	showStreams := ctx.Bool(flags.ShowStandardStreams.Name)
	if !ctx.IsSet(flags.ShowStandardStreams.Name) && tf.ShowStandardStreams != nil {
		showStreams = *tf.ShowStandardStreams
	}

	timeout := ctx.Duration(flags.Timeout.Name)
	if !ctx.IsSet(flags.Timeout.Name) && tf.Timeout != 0 {
		timeout = tf.Timeout
	}
	if timeout < 0 {
		return nil, errors.New("timeout cannot be negative")
	}

	execution, err := types.NewExecutionConfig(types.ExecutionSettings{
		RuntimeArgs:            pickSlice(ctx, flags.RuntimeArgs, tf.RuntimeArgs),
		LogEvents:              events,
		CaptureStandardStreams: showStreams,
		ExceptionFormat:        format,
		Selectors:              pickSlice(ctx, flags.Selectors, tf.Selectors),
	})
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BuildDir:      buildDir,
		WorkDir:       workDir,
		RunnerBinary:  pickString(ctx, flags.RunnerBinary, tf.Runner.Binary),
		RunnerArgs:    pickSlice(ctx, flags.RunnerArgs, tf.Runner.Args),
		Timeout:       timeout,
		Execution:     execution,
		ConfigFile:    configFile,
		HealthzAddr:   ctx.String(flags.HealthzAddr.Name),
		MetricsConfig: opmetrics.ReadCLIConfig(ctx),
		Log:           log,
	}
	if err := cfg.MetricsConfig.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}
	return cfg, nil
}

// pickString prefers an explicitly set flag, then the file value, then the flag default
func pickString(ctx *cli.Context, flag *cli.StringFlag, fileValue string) string {
	if ctx.IsSet(flag.Name) || fileValue == "" {
		return ctx.String(flag.Name)
	}
	return fileValue
}

func pickSlice(ctx *cli.Context, flag *cli.StringSliceFlag, fileValue []string) []string {
	if ctx.IsSet(flag.Name) || fileValue == nil {
		return ctx.StringSlice(flag.Name)
	}
	return fileValue
}
