package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	testreport "github.com/ethereum-optimism/infra/op-testreport"
	"github.com/ethereum-optimism/infra/op-testreport/flags"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-testreport"
	app.Usage = "Runs the test suite once and prints a summary of the results"
	app.Description = "op-testreport launches the test runner, streams per-test results to the console, " +
		"renders an HTML report and exits with a code derived from the outcome"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	// Runtime args may contain commas
	app.DisableSliceFlagSeparator = true
	app.Commands = []*cli.Command{
		{
			Name:   testreport.TaskTest,
			Usage:  "Run the tests and render the HTML report",
			Action: cliapp.LifecycleCmd(lifecycle(testreport.TaskTest)),
		},
		{
			Name:   testreport.TaskTestReport,
			Usage:  "Run the tests, then print the summary (default)",
			Action: cliapp.LifecycleCmd(lifecycle(testreport.TaskTestReport)),
		},
	}
	app.DefaultCommand = testreport.TaskTestReport
	app.ExitErrHandler = exitErrHandler
	return app
}

func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		// Use the exit code from the ExitCoder
		cli.HandleExitCoder(exitErr)
		return
	}
	cli.HandleExitCoder(cli.Exit(err.Error(), testreport.ExitCode(err)))
}

func lifecycle(target string) cliapp.LifecycleAction {
	return func(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		return run(ctx, closeApp, target, testreport.Options{})
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc, target string, opts testreport.Options) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := testreport.NewConfig(ctx, log)
	if err != nil {
		// Wrap in ConfigurationError to signal this should exit with code 2
		return nil, testreport.NewConfigurationError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	app, err := testreport.New(cfg, target, opts, closeApp)
	if err != nil {
		return nil, testreport.NewExecutionError(fmt.Errorf("failed to create %s: %w", target, err))
	}
	return app, nil
}
