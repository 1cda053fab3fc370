package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-testreport/types"
)

const (
	TestResultsDir = "test-results/test" // Relative to the build root
	AllLogsFile    = "all.log"
)

// FileSink writes a dedicated log file per test, grouped by status, plus a
// combined all.log holding every result of the run.
type FileSink struct {
	dir string

	mu      sync.Mutex
	allLogs *os.File
	written map[string]bool // File names already used by this run
}

var _ ResultSink = (*FileSink)(nil)

// NewFileSink creates the result directories under buildRoot
func NewFileSink(buildRoot string) (*FileSink, error) {
	if buildRoot == "" {
		return nil, fmt.Errorf("build root cannot be empty")
	}
	dir := filepath.Join(buildRoot, filepath.FromSlash(TestResultsDir))
	for _, sub := range []string{"passed", "failed", "skipped"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Join(dir, sub), err)
		}
	}
	return &FileSink{
		dir:     dir,
		written: make(map[string]bool),
	}, nil
}

// Dir returns the directory the sink writes into
func (s *FileSink) Dir() string {
	return s.dir
}

func (s *FileSink) Consume(result *types.TestResult, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.allLogs == nil {
		f, err := os.Create(filepath.Join(s.dir, AllLogsFile))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", AllLogsFile, err)
		}
		s.allLogs = f
	}

	content := formatResultLog(result, runID)
	if _, err := s.allLogs.WriteString(content); err != nil {
		return fmt.Errorf("failed to write %s: %w", AllLogsFile, err)
	}

	base := safeFilename(result.ID())
	name := base
	// A suffixed name may itself be the safe name of another test
	for i := 2; s.written[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	s.written[name] = true

	path := filepath.Join(s.dir, statusDir(result.Status), name+".txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write test log %s: %w", path, err)
	}
	return nil
}

func (s *FileSink) Complete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.allLogs == nil {
		return nil
	}
	err := s.allLogs.Close()
	s.allLogs = nil
	return err
}

func statusDir(status types.TestStatus) string {
	switch status {
	case types.TestStatusFail:
		return "failed"
	case types.TestStatusSkip:
		return "skipped"
	default:
		return "passed"
	}
}

func formatResultLog(result *types.TestResult, runID string) string {
	var content strings.Builder

	fmt.Fprintf(&content, "TEST:     %s\n", result.DisplayName())
	fmt.Fprintf(&content, "Status:   %s\n", result.Status)
	fmt.Fprintf(&content, "Duration: %s\n", result.Duration)
	fmt.Fprintf(&content, "Run:      %s\n", runID)
	fmt.Fprintf(&content, "Time:     %s\n\n", time.Now().Format(time.RFC3339))

	if result.Error != "" {
		content.WriteString("ERROR:\n~~~~~~\n")
		content.WriteString(stripansi.Strip(result.Error))
		content.WriteString("\n\n")
	}

	if len(result.Output) > 0 {
		content.WriteString("OUTPUT:\n~~~~~~~\n")
		for _, line := range result.Output {
			content.WriteString("  ")
			content.WriteString(stripansi.Strip(line))
			content.WriteString("\n")
		}
		content.WriteString("\n")
	}

	return content.String()
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	s = replacer.Replace(s)
	s = strings.ReplaceAll(s, "...", "")
	if s == "" {
		return "unnamed"
	}
	return s
}
