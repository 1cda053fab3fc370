package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-testreport/types"
)

const failureIndent = "    "

// ConsoleSink prints one line per test result:
//
//	example.com/pkg > TestCreateMovie PASSED
//	example.com/pkg > TestDeleteMovie FAILED
//	    movie_test.go:42: expected 404, got 200
type ConsoleSink struct {
	out    io.Writer
	format types.ExceptionFormat

	mu sync.Mutex
}

var _ ResultSink = (*ConsoleSink)(nil)
var _ OutputSink = (*ConsoleSink)(nil)

// NewConsoleSink creates a console sink. A nil writer defaults to stdout.
func NewConsoleSink(out io.Writer, format types.ExceptionFormat) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	if format == "" {
		format = types.ExceptionFormatShort
	}
	return &ConsoleSink{out: out, format: format}
}

func (s *ConsoleSink) Consume(result *types.TestResult, runID string) error {
	category, err := result.Status.Category()
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", result.DisplayName(), category)
	if result.Status == types.TestStatusFail {
		if msg := result.FailureMessage(s.format); msg != "" {
			for _, line := range strings.Split(stripansi.Strip(msg), "\n") {
				b.WriteString(failureIndent)
				b.WriteString(strings.TrimRight(line, " \t\r"))
				b.WriteString("\n")
			}
		}
	}
	return s.write(b.String())
}

func (s *ConsoleSink) ConsumeOutput(line string, runID string) error {
	return s.write(stripansi.Strip(strings.TrimRight(line, "\r\n")) + "\n")
}

func (s *ConsoleSink) Complete(runID string) error {
	return nil
}

func (s *ConsoleSink) write(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, text)
	return err
}
