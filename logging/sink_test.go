package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testreport/types"
)

type recordingSink struct {
	results   []*types.TestResult
	lines     []string
	completed bool
}

func (r *recordingSink) Consume(result *types.TestResult, runID string) error {
	r.results = append(r.results, result)
	return nil
}

func (r *recordingSink) ConsumeOutput(line string, runID string) error {
	r.lines = append(r.lines, line)
	return nil
}

func (r *recordingSink) Complete(runID string) error {
	r.completed = true
	return nil
}

type resultOnlySink struct {
	count int
}

func (r *resultOnlySink) Consume(result *types.TestResult, runID string) error {
	r.count++
	return nil
}

func (r *resultOnlySink) Complete(runID string) error { return nil }

func TestFilteredSink(t *testing.T) {
	cfg, err := types.NewExecutionConfig(types.ExecutionSettings{
		LogEvents: []types.EventCategory{types.EventFailed},
	})
	require.NoError(t, err)

	rec := &recordingSink{}
	sink := NewFilteredSink(rec, cfg)

	require.NoError(t, sink.Consume(&types.TestResult{Name: "TestA", Status: types.TestStatusPass}, "run"))
	require.NoError(t, sink.Consume(&types.TestResult{Name: "TestB", Status: types.TestStatusSkip}, "run"))
	require.NoError(t, sink.Consume(&types.TestResult{Name: "TestC", Status: types.TestStatusFail}, "run"))
	require.NoError(t, sink.ConsumeOutput("hello", "run"))
	require.NoError(t, sink.Complete("run"))

	require.Len(t, rec.results, 1)
	assert.Equal(t, "TestC", rec.results[0].Name)
	assert.Equal(t, []string{"hello"}, rec.lines)
	assert.True(t, rec.completed)
}

func TestFilteredSinkNoEvents(t *testing.T) {
	cfg, err := types.NewExecutionConfig(types.ExecutionSettings{})
	require.NoError(t, err)

	rec := &recordingSink{}
	sink := NewFilteredSink(rec, cfg)
	require.NoError(t, sink.Consume(&types.TestResult{Name: "TestC", Status: types.TestStatusFail}, "run"))
	assert.Empty(t, rec.results)
}

func TestFilteredSinkUnknownStatus(t *testing.T) {
	cfg, err := types.NewExecutionConfig(types.ExecutionSettings{LogEvents: types.AllEventCategories})
	require.NoError(t, err)

	sink := NewFilteredSink(&recordingSink{}, cfg)
	assert.Error(t, sink.Consume(&types.TestResult{Name: "TestX", Status: "bench"}, "run"))
}

func TestFilteredSinkOutputWithoutOutputSink(t *testing.T) {
	cfg, err := types.NewExecutionConfig(types.ExecutionSettings{LogEvents: types.AllEventCategories})
	require.NoError(t, err)

	inner := &resultOnlySink{}
	sink := NewFilteredSink(inner, cfg)
	assert.NoError(t, sink.ConsumeOutput("dropped", "run"))
	require.NoError(t, sink.Consume(&types.TestResult{Name: "TestA", Status: types.TestStatusPass}, "run"))
	assert.Equal(t, 1, inner.count)
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, types.ExceptionFormatShort)

	require.NoError(t, sink.Consume(&types.TestResult{
		Package: "example.com/movies",
		Name:    "TestCreateMovie",
		Status:  types.TestStatusPass,
	}, "run"))
	require.NoError(t, sink.Consume(&types.TestResult{
		Package: "example.com/movies",
		Name:    "TestDeleteMovie",
		Status:  types.TestStatusFail,
		Output:  []string{"    movie_test.go:42: \x1b[31mexpected 404, got 200\x1b[0m", "    movie_test.go:43: more"},
	}, "run"))
	require.NoError(t, sink.ConsumeOutput("\x1b[1mraw line\x1b[0m\n", "run"))
	require.NoError(t, sink.Complete("run"))

	expected := "example.com/movies > TestCreateMovie PASSED\n" +
		"example.com/movies > TestDeleteMovie FAILED\n" +
		"    movie_test.go:42: expected 404, got 200\n" +
		"raw line\n"
	assert.Equal(t, expected, buf.String())
}

func TestConsoleSinkFullFormat(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, types.ExceptionFormatFull)

	require.NoError(t, sink.Consume(&types.TestResult{
		Name:   "TestDeleteMovie",
		Status: types.TestStatusFail,
		Error:  "first\nsecond",
	}, "run"))

	assert.Equal(t, "TestDeleteMovie FAILED\n    first\n    second\n", buf.String())
}

func TestConsoleSinkDefaults(t *testing.T) {
	sink := NewConsoleSink(nil, "")
	assert.NotNil(t, sink.out)
	assert.Equal(t, types.ExceptionFormatShort, sink.format)
}
