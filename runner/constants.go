package runner

// Actions emitted by the test runner protocol
const (
	ActionStart       = "start"
	ActionRun         = "run"
	ActionPause       = "pause"
	ActionCont        = "cont"
	ActionOutput      = "output"
	ActionPass        = "pass"
	ActionFail        = "fail"
	ActionSkip        = "skip"
	ActionBench       = "bench"
	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
)

const (
	// DefaultBinary is the test runner launched when none is configured
	DefaultBinary = "go"

	TestCommand = "test"
	JSONFlag    = "-json"

	// AllPackagesPattern selects every package of the module
	AllPackagesPattern = "./..."

	// flagRejectedMarker is printed by the flag package for unknown flags
	flagRejectedMarker = "flag provided but not defined:"
	// usageExitStatus is how go test reports a test binary that exited with
	// the flag package's usage status
	usageExitStatus = "exit status 2"
	panicPrefix     = "panic:"

	// stderrTailBytes bounds the stderr kept for diagnostics
	stderrTailBytes = 64 * 1024
)

// DefaultBaseArgs are the arguments placed before the runtime args
var DefaultBaseArgs = []string{TestCommand, JSONFlag}
