package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Task is a named unit of work that runs after its dependencies
type Task struct {
	Name        string
	Description string
	DependsOn   []string
	Action      func(ctx context.Context) error
}

// TaskError reports the task that stopped a run
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Registry manages tasks and the order they run in
type Registry struct {
	config Config
	tasks  map[string]*Task
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Registry{
		config: cfg,
		tasks:  make(map[string]*Task),
	}
}

// Register adds a task. Dependencies are checked when a task is planned,
// so tasks can be registered in any order.
func (r *Registry) Register(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if task.Action == nil {
		return fmt.Errorf("task %s has no action", task.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.Name]; exists {
		return fmt.Errorf("task %s is already registered", task.Name)
	}
	task.DependsOn = append([]string(nil), task.DependsOn...)
	r.tasks[task.Name] = &task
	return nil
}

// Tasks returns the registered task names in alphabetical order
func (r *Registry) Tasks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a registered task
func (r *Registry) Get(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[name]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Plan returns the tasks needed for target in execution order, dependencies first
func (r *Registry) Plan(target string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.tasks[target]; !ok {
		return nil, fmt.Errorf("unknown task %s", target)
	}

	var order []string
	done := make(map[string]bool)
	if err := r.visit(target, nil, done, &order); err != nil {
		return nil, err
	}
	return order, nil
}

// visit walks dependencies depth first. path holds the tasks currently being
// visited and is used to detect cycles.
func (r *Registry) visit(name string, path []string, done map[string]bool, order *[]string) error {
	if done[name] {
		return nil
	}
	for i, p := range path {
		if p == name {
			cycle := append(append([]string(nil), path[i:]...), name)
			return fmt.Errorf("circular dependency detected: %s", strings.Join(cycle, " -> "))
		}
	}

	task := r.tasks[name]
	path = append(path, name)
	for _, dep := range task.DependsOn {
		if _, exists := r.tasks[dep]; !exists {
			return fmt.Errorf("task %s depends on non-existent task %s", name, dep)
		}
		if err := r.visit(dep, path, done, order); err != nil {
			return err
		}
	}

	done[name] = true
	*order = append(*order, name)
	return nil
}

// Run executes target and its dependencies sequentially, stopping at the
// first task that fails.
func (r *Registry) Run(ctx context.Context, target string) error {
	order, err := r.Plan(target)
	if err != nil {
		return err
	}
	r.config.Log.Debug("Running tasks", "target", target, "order", order)

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return &TaskError{Task: name, Err: err}
		}
		task, _ := r.Get(name)
		r.config.Log.Debug("Running task", "task", name)
		if err := task.Action(ctx); err != nil {
			return &TaskError{Task: name, Err: err}
		}
	}
	return nil
}
