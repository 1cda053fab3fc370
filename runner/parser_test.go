package runner

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testreport/types"
)

func parseAll(t *testing.T, stream string) ([]*types.TestResult, []string, *eventParser) {
	t.Helper()
	var results []*types.TestResult
	var output []string
	p := newEventParser(
		func(r *types.TestResult) error {
			results = append(results, r)
			return nil
		},
		func(line string) error {
			output = append(output, line)
			return nil
		},
	)
	for _, line := range strings.Split(stream, "\n") {
		require.NoError(t, p.ParseLine([]byte(line)))
	}
	require.NoError(t, p.Flush())
	return results, output, p
}

func TestParserEmitsResultsInArrivalOrder(t *testing.T) {
	stream := `{"Action":"start","Package":"example.com/movies"}
{"Action":"run","Package":"example.com/movies","Test":"TestCreate"}
{"Action":"output","Package":"example.com/movies","Test":"TestCreate","Output":"=== RUN   TestCreate\n"}
{"Action":"output","Package":"example.com/movies","Test":"TestCreate","Output":"    movie_test.go:10: created\n"}
{"Action":"output","Package":"example.com/movies","Test":"TestCreate","Output":"--- PASS: TestCreate (0.25s)\n"}
{"Action":"pass","Package":"example.com/movies","Test":"TestCreate","Elapsed":0.25}
{"Action":"run","Package":"example.com/movies","Test":"TestDelete"}
{"Action":"output","Package":"example.com/movies","Test":"TestDelete","Output":"    movie_test.go:42: expected 404, got 200\n"}
{"Action":"fail","Package":"example.com/movies","Test":"TestDelete","Elapsed":0.01}
{"Action":"run","Package":"example.com/movies","Test":"TestList"}
{"Action":"skip","Package":"example.com/movies","Test":"TestList"}
{"Action":"output","Package":"example.com/movies","Output":"FAIL\n"}
{"Action":"fail","Package":"example.com/movies","Elapsed":0.3}`

	results, output, p := parseAll(t, stream)
	require.Len(t, results, 3)

	assert.Equal(t, "TestCreate", results[0].Name)
	assert.Equal(t, types.TestStatusPass, results[0].Status)
	assert.Equal(t, 250*time.Millisecond, results[0].Duration)
	assert.Equal(t, []string{"    movie_test.go:10: created"}, results[0].Output)

	assert.Equal(t, "TestDelete", results[1].Name)
	assert.Equal(t, types.TestStatusFail, results[1].Status)
	assert.Equal(t, "movie_test.go:42: expected 404, got 200", results[1].FailureMessage(types.ExceptionFormatShort))

	assert.Equal(t, "TestList", results[2].Name)
	assert.Equal(t, types.TestStatusSkip, results[2].Status)

	// The package failure is explained by TestDelete
	assert.Equal(t, types.SummaryCounts{Passed: 1, Skipped: 1, Failed: 1}, p.Counts())
	assert.Equal(t, 13, p.Events())
	assert.Equal(t, []string{"    movie_test.go:10: created", "    movie_test.go:42: expected 404, got 200"}, output)
}

func TestParserCountsSubtestsIndividually(t *testing.T) {
	stream := `{"Action":"run","Package":"p","Test":"TestParent"}
{"Action":"run","Package":"p","Test":"TestParent/one"}
{"Action":"pass","Package":"p","Test":"TestParent/one"}
{"Action":"run","Package":"p","Test":"TestParent/two"}
{"Action":"pass","Package":"p","Test":"TestParent/two"}
{"Action":"pass","Package":"p","Test":"TestParent"}
{"Action":"pass","Package":"p"}`

	results, _, p := parseAll(t, stream)
	require.Len(t, results, 3)
	assert.Equal(t, "TestParent/one", results[0].Name)
	assert.Equal(t, "TestParent", results[2].Name)
	assert.Equal(t, types.SummaryCounts{Passed: 3}, p.Counts())
}

func TestParserReportsBuildFailureAsPackageResult(t *testing.T) {
	stream := `{"ImportPath":"example.com/broken","Action":"build-output","Output":"# example.com/broken\n"}
{"ImportPath":"example.com/broken","Action":"build-output","Output":"broken.go:3:1: syntax error\n"}
{"ImportPath":"example.com/broken","Action":"build-fail"}
{"Action":"start","Package":"example.com/broken"}
{"Action":"output","Package":"example.com/broken","Output":"FAIL\texample.com/broken [build failed]\n"}
{"Action":"fail","Package":"example.com/broken","Elapsed":0,"FailedBuild":"example.com/broken"}`

	results, _, p := parseAll(t, stream)
	require.Len(t, results, 1)
	assert.Equal(t, "example.com/broken", results[0].Package)
	assert.Empty(t, results[0].Name)
	assert.Equal(t, types.TestStatusFail, results[0].Status)
	assert.Equal(t, []string{"# example.com/broken", "broken.go:3:1: syntax error"}, results[0].Output)
	assert.Equal(t, 1, p.Counts().Failed)
}

func TestParserReportsPackagePanicWithoutTests(t *testing.T) {
	stream := `{"Action":"start","Package":"p"}
{"Action":"output","Package":"p","Output":"panic: TestMain exploded\n"}
{"Action":"fail","Package":"p"}`

	results, output, _ := parseAll(t, stream)
	require.Len(t, results, 1)
	assert.Equal(t, "panic: TestMain exploded", results[0].FailureMessage(types.ExceptionFormatShort))
	assert.Equal(t, []string{"panic: TestMain exploded"}, output)
}

// rejectedFlagsStream is what go test -json prints when the test binary
// refuses a runtime flag
const rejectedFlagsStream = `{"Action":"start","Package":"example.com/movies"}
{"Action":"output","Package":"example.com/movies","Output":"flag provided but not defined: -Xshare:off\n"}
{"Action":"output","Package":"example.com/movies","Output":"Usage of /tmp/go-build123/b001/movies.test:\n"}
{"Action":"output","Package":"example.com/movies","Output":"  -test.bench regexp\n"}
{"Action":"output","Package":"example.com/movies","Output":"    \trun only benchmarks matching regexp\n"}
{"Action":"output","Package":"example.com/movies","Output":"exit status 2\n"}
{"Action":"output","Package":"example.com/movies","Output":"FAIL\texample.com/movies\t0.002s\n"}
{"Action":"fail","Package":"example.com/movies","Elapsed":0.002}`

func TestParserRecordsFlagRejection(t *testing.T) {
	results, _, p := parseAll(t, rejectedFlagsStream)
	assert.Empty(t, results)
	assert.Equal(t, types.SummaryCounts{}, p.Counts())
	require.NotEmpty(t, p.Rejections())
	assert.Equal(t, "flag provided but not defined: -Xshare:off", p.Rejections()[0])
	assert.Contains(t, p.Rejections(), "exit status 2")
}

func TestParserRecordsUsageExitAsRejection(t *testing.T) {
	stream := `{"Action":"start","Package":"p"}
{"Action":"output","Package":"p","Output":"invalid value \"x\" for flag -test.count\n"}
{"Action":"output","Package":"p","Output":"exit status 2\n"}
{"Action":"fail","Package":"p"}`

	results, _, p := parseAll(t, stream)
	assert.Empty(t, results)
	assert.Len(t, p.Rejections(), 2)
}

func TestParserPanicWithUsageExitStatusIsAFailure(t *testing.T) {
	stream := `{"Action":"start","Package":"p"}
{"Action":"output","Package":"p","Output":"panic: init exploded\n"}
{"Action":"output","Package":"p","Output":"exit status 2\n"}
{"Action":"fail","Package":"p"}`

	results, _, p := parseAll(t, stream)
	require.Len(t, results, 1)
	assert.Equal(t, types.TestStatusFail, results[0].Status)
	assert.Empty(t, p.Rejections())
}

func TestParserRejectionMarkerAfterTestsRanIsAFailure(t *testing.T) {
	stream := `{"Action":"run","Package":"p","Test":"TestFlags"}
{"Action":"output","Package":"p","Test":"TestFlags","Output":"flag provided but not defined: -custom\n"}
{"Action":"fail","Package":"p","Test":"TestFlags"}
{"Action":"output","Package":"p","Output":"exit status 2\n"}
{"Action":"fail","Package":"p"}`

	results, _, p := parseAll(t, stream)
	require.Len(t, results, 1)
	assert.Equal(t, "TestFlags", results[0].Name)
	assert.Empty(t, p.Rejections())
}

func TestParserPackageFailureWithoutOutput(t *testing.T) {
	results, _, _ := parseAll(t, `{"Action":"fail","Package":"p"}`)
	require.Len(t, results, 1)
	assert.Equal(t, "package p failed", results[0].Error)
}

func TestParserFailsUnfinishedTests(t *testing.T) {
	stream := `{"Action":"run","Package":"p","Test":"TestHang"}
{"Action":"output","Package":"p","Test":"TestHang","Output":"waiting\n"}
{"Action":"fail","Package":"p"}
{"Action":"run","Package":"q","Test":"TestLost"}`

	results, _, p := parseAll(t, stream)
	require.Len(t, results, 2)
	assert.Equal(t, "TestHang", results[0].Name)
	assert.Equal(t, types.TestStatusFail, results[0].Status)
	assert.Equal(t, []string{"waiting"}, results[0].Output)
	assert.Equal(t, "TestLost", results[1].Name)
	// TestHang explains the package failure, so no package result
	assert.Equal(t, 2, p.Counts().Failed)
}

func TestParserTreatsNonJSONAsOutput(t *testing.T) {
	results, output, p := parseAll(t, "plain text\n{not json}\n\n")
	assert.Empty(t, results)
	assert.Equal(t, []string{"plain text", "{not json}"}, output)
	assert.Zero(t, p.Events())
}

func TestParserIgnoresNonTerminalActions(t *testing.T) {
	stream := `{"Action":"run","Package":"p","Test":"TestA"}
{"Action":"pause","Package":"p","Test":"TestA"}
{"Action":"cont","Package":"p","Test":"TestA"}
{"Action":"bench","Package":"p","Test":"BenchmarkA"}
{"Action":"pass","Package":"p","Test":"TestA"}`

	results, _, p := parseAll(t, stream)
	require.Len(t, results, 1)
	assert.Equal(t, 5, p.Events())
}

func TestIsFrameworkLine(t *testing.T) {
	for _, line := range []string{
		"=== RUN   TestA", "    --- PASS: TestA/sub (0.00s)", "--- FAIL: TestB (0.01s)",
		"PASS", "FAIL", "ok  \texample.com/p\t0.01s", "FAIL\texample.com/p\t0.02s", "?   \texample.com/q\t[no test files]",
	} {
		assert.True(t, isFrameworkLine(line), line)
	}
	for _, line := range []string{"    foo_test.go:1: hello", "panic: boom", "PASSED"} {
		assert.False(t, isFrameworkLine(line), line)
	}
}
