package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-testreport/types"
)

const EnvVarPrefix = "OP_TESTREPORT"

var (
	BuildDir = &cli.StringFlag{
		Name:    "build-dir",
		Value:   "build",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BUILD_DIR"),
		Usage:   "Build output root. The HTML report is written to <build-dir>/reports/tests/test/index.html",
	}
	WorkDir = &cli.StringFlag{
		Name:    "work-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORK_DIR"),
		Usage:   "Directory the test runner is launched in. Defaults to the current directory",
	}
	RunnerBinary = &cli.StringFlag{
		Name:    "runner-binary",
		Value:   "go",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUNNER_BINARY"),
		Usage:   "Path to the test runner binary",
	}
	RunnerArgs = &cli.StringSliceFlag{
		Name:    "runner-args",
		Value:   cli.NewStringSlice("test", "-json"),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUNNER_ARGS"),
		Usage:   "Arguments placed before the runtime args. The runner must emit line-delimited JSON test events",
	}
	RuntimeArgs = &cli.StringSliceFlag{
		Name:    "runtime-arg",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUNTIME_ARG"),
		Usage:   "Flag forwarded verbatim to the test runner. Repeat to pass several, order is preserved",
	}
	Events = &cli.StringFlag{
		Name:    "events",
		Value:   "passed,skipped,failed",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EVENTS"),
		Usage:   "Comma separated result categories printed per test (passed, skipped, failed). Empty prints none",
	}
	ShowStandardStreams = &cli.BoolFlag{
		Name:    "show-standard-streams",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_STANDARD_STREAMS"),
		Usage:   "Print the output of the tests alongside the result events",
	}
	ExceptionFormat = &cli.StringFlag{
		Name:    "exception-format",
		Value:   "short",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXCEPTION_FORMAT"),
		Usage:   "How failures are printed: 'short' (first line) or 'full'",
		Action: func(_ *cli.Context, value string) error {
			_, err := types.ParseExceptionFormat(value)
			return err
		},
	}
	Selectors = &cli.StringSliceFlag{
		Name:    "selector",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SELECTOR"),
		Usage:   "Package pattern to test (eg. './...', './api', 'example.com/mod/api/...'). Defaults to './...'",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Deadline for the whole test run (e.g. '10m'). 0 disables the deadline",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to an optional YAML task file. Flags set explicitly take precedence over it",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Address to serve /healthz on while tests run (eg. '0.0.0.0:8080'). Disabled when empty",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	BuildDir,
	WorkDir,
	RunnerBinary,
	RunnerArgs,
	RuntimeArgs,
	Events,
	ShowStandardStreams,
	ExceptionFormat,
	Selectors,
	Timeout,
	ConfigFile,
	HealthzAddr,
}

// Flags contains the list of configuration options available to the binary.
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}

// ParseEvents parses a comma separated list of result categories
func ParseEvents(value string) ([]types.EventCategory, error) {
	var events []types.EventCategory
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		event, err := types.ParseEventCategory(part)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
