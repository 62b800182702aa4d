// Package tasks holds the user-defined actions the appliance runs for each
// trigger class, and the policy applied when one of them fails.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Class names a trigger that runs a list of tasks.
type Class string

const (
	ClassDaily    Class = "DAILY"
	ClassHold     Class = "HOLD"
	ClassInterval Class = "INTERVAL"
	ClassTap      Class = "TAP"
)

// Classes lists every class in a stable order.
var Classes = []Class{ClassDaily, ClassHold, ClassInterval, ClassTap}

// ErrTaskFailed is wrapped by Run when the StopOnError policy aborts a class.
var ErrTaskFailed = errors.New("task failed")

// FailurePolicy decides what happens to the rest of a class when a task fails.
type FailurePolicy string

const (
	// ContinueOnError logs the failure and runs the remaining tasks.
	ContinueOnError FailurePolicy = "continue"
	// StopOnError aborts the class and returns the error to the caller.
	StopOnError FailurePolicy = "stop"
)

// ParseFailurePolicy accepts "continue" or "stop"; empty means continue.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", ContinueOnError:
		return ContinueOnError, nil
	case StopOnError:
		return StopOnError, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// Task is a named zero-argument action.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskResult is the outcome of one task.
type TaskResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Result is the outcome of running one class.
type Result struct {
	Class    Class
	Started  time.Time
	Duration time.Duration
	Tasks    []TaskResult
}

// Ran returns how many tasks were started.
func (r Result) Ran() int { return len(r.Tasks) }

// Failed returns how many tasks returned an error.
func (r Result) Failed() int {
	n := 0
	for _, t := range r.Tasks {
		if t.Err != nil {
			n++
		}
	}
	return n
}

// FirstError returns the first task error, or nil.
func (r Result) FirstError() error {
	for _, t := range r.Tasks {
		if t.Err != nil {
			return t.Err
		}
	}
	return nil
}

// Runner runs the tasks registered for a class.
type Runner interface {
	Run(ctx context.Context, class Class) (Result, error)
}

// Registry maps each class to an ordered list of tasks.
// It is used only from the control loop and is not safe for concurrent use.
type Registry struct {
	tasks  map[Class][]Task
	policy FailurePolicy
	log    zerolog.Logger
	now    func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(policy FailurePolicy, log zerolog.Logger) *Registry {
	return &Registry{
		tasks:  make(map[Class][]Task),
		policy: policy,
		log:    log.With().Str("component", "tasks").Logger(),
		now:    time.Now,
	}
}

// Add appends tasks to a class, preserving order.
func (r *Registry) Add(class Class, tasks ...Task) {
	r.tasks[class] = append(r.tasks[class], tasks...)
}

// Tasks returns the tasks registered for a class.
func (r *Registry) Tasks(class Class) []Task {
	return r.tasks[class]
}

// Run executes every task of class in order.
// Under ContinueOnError the returned error is always nil and failures are only
// reported in the Result. Under StopOnError the first failure ends the class and
// is returned wrapped in ErrTaskFailed.
func (r *Registry) Run(ctx context.Context, class Class) (Result, error) {
	list := r.tasks[class]
	res := Result{Class: class, Started: r.now()}

	r.log.Debug().Str("class", string(class)).Int("count", len(list)).Msg("executing tasks")

	for _, t := range list {
		start := r.now()
		err := runTask(ctx, t)
		tr := TaskResult{Name: t.Name, Err: err, Duration: r.now().Sub(start)}
		res.Tasks = append(res.Tasks, tr)

		if err == nil {
			continue
		}
		r.log.Error().Err(err).Str("class", string(class)).Str("task", t.Name).Msg("task failed")
		if r.policy == StopOnError {
			res.Duration = r.now().Sub(res.Started)
			return res, fmt.Errorf("%s task %q: %w: %w", class, t.Name, ErrTaskFailed, err)
		}
	}

	res.Duration = r.now().Sub(res.Started)
	return res, nil
}

// runTask calls t.Run, converting a panic into an error.
func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	if t.Run == nil {
		return errors.New("task has no action")
	}
	return t.Run(ctx)
}
