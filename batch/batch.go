// Package batch runs locus tasks sequentially or in parallel.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"

	"bitbucket.org/Davydov/phyinf/locus"
)

var log = logging.MustGetLogger("batch")

// Policy defines what happens after a task fails.
type Policy int

const (
	// FailFast cancels the tasks which have not finished yet.
	FailFast Policy = iota
	// Collect runs every task and reports all the failures.
	Collect
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "failfast"
	case Collect:
		return "collect"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy converts a policy name to Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "failfast", "fail-fast":
		return FailFast, nil
	case "collect":
		return Collect, nil
	}
	return FailFast, fmt.Errorf("unknown failure policy: %q", s)
}

// TaskError is a failure of a single locus.
type TaskError struct {
	Locus string
	Err   error
}

func (e *TaskError) Error() string {
	return e.Locus + ": " + e.Err.Error()
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Outcome is either a result or an error of a task.
type Outcome struct {
	Task   locus.Task
	Result *locus.Result
	Err    error
}

// ProcessFunc processes a single task.
type ProcessFunc func(context.Context, locus.Task) (*locus.Result, error)

// Options control a batch run.
type Options struct {
	Parallel bool
	// Workers is the pool size in the parallel mode; zero means
	// DefaultWorkers.
	Workers int
	Policy  Policy
	// OnDone is called after every finished task, done is the
	// number of finished tasks so far. Calls are serialized.
	OnDone func(done, total int, o Outcome)
}

// DefaultWorkers returns the number of CPUs minus one, but at least
// one.
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Run processes tasks. Outcomes are returned in the task order
// regardless of the execution order. Tasks cancelled by the FailFast
// policy have context.Canceled as the error cause.
func Run(ctx context.Context, tasks []locus.Task, process ProcessFunc, opts Options) []Outcome {
	workers := 1
	if opts.Parallel {
		workers = opts.Workers
		if workers <= 0 {
			workers = DefaultWorkers()
		}
	}
	log.Debugf("running %d tasks with %d workers (%v)", len(tasks), workers, opts.Policy)

	outcomes := make([]Outcome, len(tasks))
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range tasks {
		i := i
		g.Go(func() error {
			o := Outcome{Task: tasks[i]}
			if err := gctx.Err(); err != nil {
				o.Err = &TaskError{tasks[i].Name, err}
			} else if o.Result, o.Err = process(gctx, tasks[i]); o.Err != nil {
				o.Err = &TaskError{tasks[i].Name, o.Err}
			}
			outcomes[i] = o

			mu.Lock()
			done++
			if opts.OnDone != nil {
				opts.OnDone(done, len(tasks), o)
			}
			mu.Unlock()

			if o.Err != nil && opts.Policy == FailFast {
				return o.Err
			}
			return nil
		})
	}
	g.Wait()
	return outcomes
}

// Errors returns failures in the task order.
func Errors(outcomes []Outcome) (errs []*TaskError) {
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		if te, ok := o.Err.(*TaskError); ok {
			errs = append(errs, te)
		} else {
			errs = append(errs, &TaskError{o.Task.Name, o.Err})
		}
	}
	return
}

// Results returns successful results in the task order.
func Results(outcomes []Outcome) (res []*locus.Result) {
	for _, o := range outcomes {
		if o.Err == nil {
			res = append(res, o.Result)
		}
	}
	return
}
