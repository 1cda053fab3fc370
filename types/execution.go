package types

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// EventCategory is a result category that can be surfaced to the event sink
type EventCategory string

const (
	EventPassed  EventCategory = "PASSED"
	EventSkipped EventCategory = "SKIPPED"
	EventFailed  EventCategory = "FAILED"
)

// AllEventCategories lists the categories in display order
var AllEventCategories = []EventCategory{EventPassed, EventSkipped, EventFailed}

// ParseEventCategory parses "passed", "skipped" or "failed" in any case
func ParseEventCategory(s string) (EventCategory, error) {
	c := EventCategory(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(AllEventCategories, c) {
		return "", fmt.Errorf("unknown test event %q, must be one of passed, skipped, failed", s)
	}
	return c, nil
}

// ExceptionFormat controls how failure messages are rendered
type ExceptionFormat string

const (
	ExceptionFormatShort ExceptionFormat = "SHORT"
	ExceptionFormatFull  ExceptionFormat = "FULL"
)

// ParseExceptionFormat parses "short" or "full" in any case
func ParseExceptionFormat(s string) (ExceptionFormat, error) {
	switch f := ExceptionFormat(strings.ToUpper(strings.TrimSpace(s))); f {
	case ExceptionFormatShort, ExceptionFormatFull:
		return f, nil
	default:
		return "", fmt.Errorf("unknown exception format %q, must be short or full", s)
	}
}

// ExecutionSettings is the mutable input used to build an ExecutionConfig
type ExecutionSettings struct {
	RuntimeArgs            []string
	LogEvents              []EventCategory
	CaptureStandardStreams bool
	ExceptionFormat        ExceptionFormat
	Selectors              []string
}

// ExecutionConfig describes one invocation of the test runner.
// It is frozen at construction: every accessor returns a copy.
type ExecutionConfig struct {
	runtimeArgs    []string
	logEvents      map[EventCategory]struct{}
	captureStreams bool
	exceptionFmt   ExceptionFormat
	selectors      []string
}

// NewExecutionConfig freezes the given settings. An empty exception format
// defaults to SHORT. Duplicate log events are collapsed.
func NewExecutionConfig(s ExecutionSettings) (ExecutionConfig, error) {
	format := s.ExceptionFormat
	if format == "" {
		format = ExceptionFormatShort
	}
	if format != ExceptionFormatShort && format != ExceptionFormatFull {
		return ExecutionConfig{}, fmt.Errorf("unknown exception format %q", string(format))
	}

	events := make(map[EventCategory]struct{}, len(s.LogEvents))
	for _, e := range s.LogEvents {
		if !slices.Contains(AllEventCategories, e) {
			return ExecutionConfig{}, fmt.Errorf("unknown test event %q", string(e))
		}
		events[e] = struct{}{}
	}

	return ExecutionConfig{
		runtimeArgs:    slices.Clone(s.RuntimeArgs),
		logEvents:      events,
		captureStreams: s.CaptureStandardStreams,
		exceptionFmt:   format,
		selectors:      slices.Clone(s.Selectors),
	}, nil
}

// RuntimeArgs returns the flags forwarded to the runner, in order
func (c ExecutionConfig) RuntimeArgs() []string {
	return slices.Clone(c.runtimeArgs)
}

// LogEvents returns the surfaced categories in display order
func (c ExecutionConfig) LogEvents() []EventCategory {
	events := make([]EventCategory, 0, len(c.logEvents))
	for _, e := range AllEventCategories {
		if _, ok := c.logEvents[e]; ok {
			events = append(events, e)
		}
	}
	return events
}

// Logs reports whether results of the category reach the event sink
func (c ExecutionConfig) Logs(category EventCategory) bool {
	_, ok := c.logEvents[category]
	return ok
}

func (c ExecutionConfig) CaptureStandardStreams() bool {
	return c.captureStreams
}

func (c ExecutionConfig) ExceptionFormat() ExceptionFormat {
	return c.exceptionFmt
}

// Selectors returns the test selectors passed to the runner
func (c ExecutionConfig) Selectors() []string {
	return slices.Clone(c.selectors)
}

// String renders the logging settings the way the summary echoes them
func (c ExecutionConfig) String() string {
	names := make([]string, 0, len(c.logEvents))
	for _, e := range c.LogEvents() {
		names = append(names, string(e))
	}
	return fmt.Sprintf("events=[%s] showStandardStreams=%t exceptionFormat=%s",
		strings.Join(names, ", "), c.captureStreams, c.exceptionFmt)
}

// EffectiveFlag is a runtime flag after precedence resolution
type EffectiveFlag struct {
	Key string
	Arg string
}

// EffectiveFlags resolves the runtime args assuming later flags override
// earlier ones with the same key. Keys keep the position of their first
// occurrence. Only used for diagnostics: the runner always receives the
// verbatim ordered list.
func (c ExecutionConfig) EffectiveFlags() []EffectiveFlag {
	var flags []EffectiveFlag
	index := make(map[string]int)
	for _, arg := range c.runtimeArgs {
		key := flagKey(arg)
		if i, ok := index[key]; ok {
			flags[i].Arg = arg
			continue
		}
		index[key] = len(flags)
		flags = append(flags, EffectiveFlag{Key: key, Arg: arg})
	}
	return flags
}

// flagKey extracts the part of a flag that identifies the setting.
// "-XX:+Foo" and "-XX:-Foo" share the key "-XX:Foo".
func flagKey(arg string) string {
	if rest, ok := strings.CutPrefix(arg, "-XX:"); ok {
		rest = strings.TrimLeft(rest, "+-")
		if i := strings.Index(rest, "="); i >= 0 {
			rest = rest[:i]
		}
		return "-XX:" + rest
	}
	if i := strings.IndexAny(arg, "=:"); i > 0 {
		return arg[:i]
	}
	return arg
}

// Outcome is the aggregate result of a run
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// OutcomeFor returns FAILURE iff at least one test failed
func OutcomeFor(counts SummaryCounts) Outcome {
	if counts.Failed > 0 {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// TestRunResult is produced by one invocation of the test runner.
// It must not be modified once returned by the orchestrator.
type TestRunResult struct {
	RunID      string
	Outcome    Outcome
	ReportPath string
	Counts     SummaryCounts
	Duration   time.Duration
}

const reportRelPath = "reports/tests/test/index.html"

// ReportPointer returns the location of the HTML report under a build root
func ReportPointer(buildRoot string) string {
	return filepath.Join(buildRoot, filepath.FromSlash(reportRelPath))
}
