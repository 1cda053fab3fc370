package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(Config{Log: log.NewLogger(log.DiscardHandler())})
}

func recordTask(name string, ran *[]string, deps ...string) Task {
	return Task{
		Name:      name,
		DependsOn: deps,
		Action: func(ctx context.Context) error {
			*ran = append(*ran, name)
			return nil
		},
	}
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRegistry()
	var ran []string

	assert.Error(t, r.Register(Task{Action: func(context.Context) error { return nil }}))
	assert.Error(t, r.Register(Task{Name: "noop"}))
	require.NoError(t, r.Register(recordTask("test", &ran)))
	assert.Error(t, r.Register(recordTask("test", &ran)))
	assert.Equal(t, []string{"test"}, r.Tasks())
}

func TestPlanOrdersDependenciesFirst(t *testing.T) {
	r := newTestRegistry()
	var ran []string
	// Registered out of order on purpose
	require.NoError(t, r.Register(recordTask("testReport", &ran, "test")))
	require.NoError(t, r.Register(recordTask("test", &ran, "compile")))
	require.NoError(t, r.Register(recordTask("compile", &ran)))

	order, err := r.Plan("testReport")
	require.NoError(t, err)
	assert.Equal(t, []string{"compile", "test", "testReport"}, order)

	order, err = r.Plan("test")
	require.NoError(t, err)
	assert.Equal(t, []string{"compile", "test"}, order)
}

func TestPlanSharedDependencyRunsOnce(t *testing.T) {
	r := newTestRegistry()
	var ran []string
	require.NoError(t, r.Register(recordTask("a", &ran)))
	require.NoError(t, r.Register(recordTask("b", &ran, "a")))
	require.NoError(t, r.Register(recordTask("c", &ran, "a")))
	require.NoError(t, r.Register(recordTask("d", &ran, "b", "c")))

	order, err := r.Plan("d")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestPlanDetectsCycles(t *testing.T) {
	r := newTestRegistry()
	var ran []string
	require.NoError(t, r.Register(recordTask("a", &ran, "c")))
	require.NoError(t, r.Register(recordTask("b", &ran, "a")))
	require.NoError(t, r.Register(recordTask("c", &ran, "b")))

	_, err := r.Plan("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> c -> b -> a")
}

func TestPlanUnknownTasks(t *testing.T) {
	r := newTestRegistry()
	var ran []string
	require.NoError(t, r.Register(recordTask("a", &ran, "missing")))

	_, err := r.Plan("a")
	assert.ErrorContains(t, err, "non-existent task missing")

	_, err = r.Plan("nope")
	assert.ErrorContains(t, err, "unknown task nope")
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	r := newTestRegistry()
	var ran []string
	boom := errors.New("boom")
	require.NoError(t, r.Register(Task{
		Name: "test",
		Action: func(ctx context.Context) error {
			ran = append(ran, "test")
			return boom
		},
	}))
	require.NoError(t, r.Register(recordTask("testReport", &ran, "test")))

	err := r.Run(context.Background(), "testReport")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "test", taskErr.Task)
	assert.Equal(t, []string{"test"}, ran)
}

func TestRunHonorsCancelledContext(t *testing.T) {
	r := newTestRegistry()
	var ran []string
	require.NoError(t, r.Register(recordTask("test", &ran)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx, "test")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ran)
}

func TestGet(t *testing.T) {
	r := newTestRegistry()
	var ran []string
	require.NoError(t, r.Register(Task{Name: "test", Description: "Runs the tests", Action: recordTask("test", &ran).Action}))

	task, ok := r.Get("test")
	require.True(t, ok)
	assert.Equal(t, "Runs the tests", task.Description)

	_, ok = r.Get("other")
	assert.False(t, ok)
}
