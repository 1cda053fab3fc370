// Package exitcodes defines the standard exit codes used by op-testreport.
package exitcodes

// Exit code constants used by op-testreport
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every test passed or was skipped
// * TestFailure (1): Used when one or more tests fail
// * ConfigurationErr (2): Used when the run was misconfigured or the runner rejected its flags
// * ExecutionErr (3): Used when the runner could not be run to completion
const (
	Success          = 0 // All tests pass
	TestFailure      = 1 // Test failures
	ConfigurationErr = 2 // Invalid configuration or launch flags
	ExecutionErr     = 3 // Runner could not start, timed out or crashed
)
