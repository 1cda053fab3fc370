package testreport

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-testreport/exitcodes"
)

// ConfigurationError means the run could not be set up as configured:
// malformed runtime args, unresolvable selectors, or flags the runner rejected.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(err error) *ConfigurationError {
	return &ConfigurationError{Err: err}
}

// IsConfigurationError checks if the error is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError
	return err != nil && errors.As(err, &configErr)
}

// ExecutionError means the runner could not be run to completion
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError creates a new ExecutionError
func NewExecutionError(err error) *ExecutionError {
	return &ExecutionError{Err: err}
}

// IsExecutionError checks if the error is or wraps an ExecutionError
func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	return err != nil && errors.As(err, &execErr)
}

// TestFailureError represents a completed run with failing tests (exit code 1)
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// ExitCode maps an error returned by a run to the process exit code.
// Unclassified errors are treated as execution errors.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case IsConfigurationError(err):
		return exitcodes.ConfigurationErr
	case IsExecutionError(err):
		return exitcodes.ExecutionErr
	case IsTestFailureError(err):
		return exitcodes.TestFailure
	default:
		return exitcodes.ExecutionErr
	}
}
