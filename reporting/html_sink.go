package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-testreport/logging"
	"github.com/ethereum-optimism/infra/op-testreport/types"
)

// HTMLSink collects results and renders the HTML report once the run completes
type HTMLSink struct {
	buildRoot string
	title     string
	tmpl      *template.Template
	now       func() time.Time

	mu         sync.Mutex
	results    []*types.TestResult
	started    time.Time
	reportPath string
}

var _ logging.ResultSink = (*HTMLSink)(nil)

type packageSection struct {
	Name     string
	Anchor   string
	Counts   types.SummaryCounts
	Duration time.Duration
	Tests    []*types.TestResult
}

type reportData struct {
	Title       string
	RunID       string
	GeneratedAt time.Time
	Duration    time.Duration
	Counts      types.SummaryCounts
	Outcome     types.Outcome
	Packages    []*packageSection
}

// NewHTMLSink creates a sink writing to types.ReportPointer(buildRoot)
func NewHTMLSink(buildRoot, title string) (*HTMLSink, error) {
	if buildRoot == "" {
		return nil, fmt.Errorf("build root cannot be empty")
	}
	tmpl, err := GetHTMLTemplate(indexTemplate)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = "test"
	}
	return &HTMLSink{
		buildRoot: buildRoot,
		title:     title,
		tmpl:      tmpl,
		now:       time.Now,
	}, nil
}

func (s *HTMLSink) Consume(result *types.TestResult, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		s.started = s.now()
	}
	s.results = append(s.results, result)
	return nil
}

// Complete renders the report. The previous report, if any, is replaced.
func (s *HTMLSink) Complete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.buildReportData(runID)
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}

	path := types.ReportPointer(s.buildRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	s.reportPath = path
	return nil
}

// ReportPath returns the written report, empty until Complete succeeded
func (s *HTMLSink) ReportPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportPath
}

func (s *HTMLSink) buildReportData(runID string) *reportData {
	now := s.now()
	data := &reportData{
		Title:       s.title,
		RunID:       runID,
		GeneratedAt: now,
	}
	if !s.started.IsZero() {
		data.Duration = now.Sub(s.started)
	}

	byName := make(map[string]*packageSection)
	for _, result := range s.results {
		data.Counts.Add(result.Status)

		section, ok := byName[result.Package]
		if !ok {
			section = &packageSection{Name: result.Package, Anchor: anchor(result.Package)}
			if section.Name == "" {
				section.Name = "(default)"
			}
			byName[result.Package] = section
			data.Packages = append(data.Packages, section)
		}
		section.Counts.Add(result.Status)
		// Subtest time is already included in the parent
		if !strings.Contains(result.Name, "/") {
			section.Duration += result.Duration
		}
		section.Tests = append(section.Tests, result)
	}

	sort.Slice(data.Packages, func(i, j int) bool {
		return data.Packages[i].Name < data.Packages[j].Name
	})
	data.Outcome = types.OutcomeFor(data.Counts)
	return data
}

func anchor(pkg string) string {
	if pkg == "" {
		return "pkg-default"
	}
	return "pkg-" + strings.NewReplacer("/", "-", ".", "-").Replace(pkg)
}
