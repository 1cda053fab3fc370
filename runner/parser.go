package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-testreport/types"
)

// TestEvent represents a single event from the go test JSON output
type TestEvent struct {
	Time        time.Time // Time the event occurred
	Action      string    // The action taken (run, pause, cont, pass, fail, skip, output)
	Package     string    // The package being tested
	Test        string    // The test function name (may be empty for package events)
	Output      string    // Output text (may be empty)
	Elapsed     float64   // Elapsed time in seconds for the specific action
	ImportPath  string    // Set on build-output and build-fail events
	FailedBuild string    // Import path of the package that failed to build
}

type pendingTest struct {
	pkg    string
	name   string
	output []string
}

// eventParser turns the line-delimited event stream into per-test results.
// It is fed one line at a time and is not safe for concurrent use.
type eventParser struct {
	onResult func(*types.TestResult) error
	onOutput func(line string) error

	pending     map[string]*pendingTest
	pkgOutput   map[string][]string
	buildOutput map[string][]string
	pkgFailed   map[string]bool
	pkgTests    map[string]bool // Packages in which at least one test started
	rejections  []string        // Output of test binaries that refused their flags

	events int
	counts types.SummaryCounts
}

func newEventParser(onResult func(*types.TestResult) error, onOutput func(string) error) *eventParser {
	return &eventParser{
		onResult:    onResult,
		onOutput:    onOutput,
		pending:     make(map[string]*pendingTest),
		pkgOutput:   make(map[string][]string),
		buildOutput: make(map[string][]string),
		pkgFailed:   make(map[string]bool),
		pkgTests:    make(map[string]bool),
	}
}

// Events returns the number of protocol events seen so far
func (p *eventParser) Events() int {
	return p.events
}

// Counts returns the per-category totals of the results emitted so far
func (p *eventParser) Counts() types.SummaryCounts {
	return p.counts
}

// Rejections returns the output of every package whose test binary refused
// its flags before running a test. Empty when no package did.
func (p *eventParser) Rejections() []string {
	return p.rejections
}

// ParseLine handles a single line of runner stdout. Lines that are not
// protocol events are treated as raw standard output.
func (p *eventParser) ParseLine(line []byte) error {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '{' {
		var event TestEvent
		if err := json.Unmarshal(trimmed, &event); err == nil && event.Action != "" {
			return p.handleEvent(event)
		}
	}
	return p.output(strings.TrimRight(string(line), "\r\n"))
}

func (p *eventParser) handleEvent(event TestEvent) error {
	p.events++

	switch event.Action {
	case ActionBuildOutput:
		line := strings.TrimRight(event.Output, "\n")
		p.buildOutput[event.ImportPath] = append(p.buildOutput[event.ImportPath], line)
	case ActionRun:
		if event.Test != "" {
			p.test(event.Package, event.Test)
		}
	case ActionOutput:
		return p.handleOutput(event)
	case ActionPass, ActionFail, ActionSkip:
		if event.Test != "" {
			return p.finishTest(event)
		}
		return p.finishPackage(event)
	}
	return nil
}

func (p *eventParser) handleOutput(event TestEvent) error {
	line := strings.TrimRight(event.Output, "\r\n")
	if isFrameworkLine(line) {
		return nil
	}
	if event.Test != "" {
		t := p.test(event.Package, event.Test)
		t.output = append(t.output, line)
	} else {
		p.pkgOutput[event.Package] = append(p.pkgOutput[event.Package], line)
	}
	return p.output(line)
}

func (p *eventParser) test(pkg, name string) *pendingTest {
	key := testKey(pkg, name)
	p.pkgTests[pkg] = true
	t, ok := p.pending[key]
	if !ok {
		t = &pendingTest{pkg: pkg, name: name}
		p.pending[key] = t
	}
	return t
}

func (p *eventParser) finishTest(event TestEvent) error {
	t := p.test(event.Package, event.Test)
	delete(p.pending, testKey(event.Package, event.Test))

	return p.emit(&types.TestResult{
		Package:  t.pkg,
		Name:     t.name,
		Status:   types.TestStatus(event.Action),
		Duration: elapsed(event.Elapsed),
		Output:   t.output,
	})
}

// finishPackage flushes tests of the package that never reported a terminal
// event and reports a package-level failure when no test explains it.
func (p *eventParser) finishPackage(event TestEvent) error {
	pkg := event.Package
	for _, t := range p.unfinished(pkg) {
		if err := p.emitUnfinished(t); err != nil {
			return err
		}
	}

	output := p.pkgOutput[pkg]
	delete(p.pkgOutput, pkg)

	// go test hands unknown flags to the test binary, which exits before
	// running any test. That is a launch rejection, not a failing test.
	if event.Action == ActionFail && !p.pkgTests[pkg] && isFlagRejection(output) {
		p.rejections = append(p.rejections, output...)
		return nil
	}

	if event.Action != ActionFail || p.pkgFailed[pkg] {
		return nil
	}

	var lines []string
	if event.FailedBuild != "" {
		lines = append(lines, p.buildOutput[event.FailedBuild]...)
	}
	lines = append(lines, output...)

	result := &types.TestResult{
		Package:  pkg,
		Status:   types.TestStatusFail,
		Duration: elapsed(event.Elapsed),
		Output:   lines,
	}
	if len(lines) == 0 {
		result.Error = fmt.Sprintf("package %s failed", pkg)
	}
	return p.emit(result)
}

// Flush reports every test still running when the stream ended as failed
func (p *eventParser) Flush() error {
	for _, t := range p.unfinished("") {
		if err := p.emitUnfinished(t); err != nil {
			return err
		}
	}
	return nil
}

func (p *eventParser) unfinished(pkg string) []*pendingTest {
	var tests []*pendingTest
	for _, t := range p.pending {
		if pkg == "" || t.pkg == pkg {
			tests = append(tests, t)
		}
	}
	sort.Slice(tests, func(i, j int) bool {
		return testKey(tests[i].pkg, tests[i].name) < testKey(tests[j].pkg, tests[j].name)
	})
	for _, t := range tests {
		delete(p.pending, testKey(t.pkg, t.name))
	}
	return tests
}

func (p *eventParser) emitUnfinished(t *pendingTest) error {
	return p.emit(&types.TestResult{
		Package: t.pkg,
		Name:    t.name,
		Status:  types.TestStatusFail,
		Output:  t.output,
		Error:   "test did not report a result",
	})
}

func (p *eventParser) emit(result *types.TestResult) error {
	if result.Status == types.TestStatusFail {
		p.pkgFailed[result.Package] = true
	}
	p.counts.Add(result.Status)
	if p.onResult == nil {
		return nil
	}
	return p.onResult(result)
}

func (p *eventParser) output(line string) error {
	if p.onOutput == nil {
		return nil
	}
	return p.onOutput(line)
}

func testKey(pkg, name string) string {
	return pkg + "::" + name
}

func elapsed(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// isFlagRejection reports whether package output shows the test binary
// refusing its command line
func isFlagRejection(output []string) bool {
	usageExit := false
	for _, line := range output {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(line, flagRejectedMarker):
			return true
		case strings.HasPrefix(trimmed, panicPrefix):
			// A panicking init or TestMain also exits with status 2
			return false
		case trimmed == usageExitStatus:
			usageExit = true
		}
	}
	return usageExit
}

var frameworkPrefixes = []string{
	"=== RUN", "=== PAUSE", "=== CONT", "=== NAME",
	"--- PASS", "--- FAIL", "--- SKIP",
}

var packageSummaryPrefixes = []string{"ok  \t", "FAIL\t", "?   \t"}

// isFrameworkLine reports whether the line is emitted by the testing
// framework itself rather than by the code under test.
func isFrameworkLine(line string) bool {
	if line == "PASS" || line == "FAIL" {
		return true
	}
	for _, prefix := range packageSummaryPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	trimmed := strings.TrimLeft(line, " \t")
	for _, prefix := range frameworkPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
