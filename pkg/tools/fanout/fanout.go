// Package fanout runs independent sub-requests concurrently and keeps the
// ones that succeed.
package fanout

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/observability"
)

// Task is one sub-request. Name identifies it in outcomes and metrics.
type Task[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Outcome is the settled state of one task.
type Outcome[T any] struct {
	Name  string
	Value T
	Err   *api.Error
}

// Report lists successes and failures in task order.
type Report[T any] struct {
	Successes []Outcome[T]
	Failures  []Outcome[T]
}

// Options tune a fan-out.
type Options struct {
	// Label is the metrics label (usually the tool name).
	Label string

	// Timeout bounds each task separately. Zero means no per-task bound
	// beyond ctx.
	Timeout time.Duration

	// Limit caps concurrently running tasks. Zero means unlimited.
	Limit int
}

// Run starts every task concurrently and waits for all of them to settle.
// A task that outlives its timeout is reported as a transport failure even
// if it ignores its context. The error is non-nil only when every task
// failed (or there were none); the report is always returned.
func Run[T any](ctx context.Context, opts Options, tasks []Task[T]) (Report[T], error) {
	if len(tasks) == 0 {
		return Report[T]{}, api.NewInvalidRequestError("nothing to fan out")
	}

	outcomes := make([]Outcome[T], len(tasks))

	var g errgroup.Group
	if opts.Limit > 0 {
		g.SetLimit(opts.Limit)
	}
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = runOne(ctx, opts, task)
			return nil
		})
	}
	_ = g.Wait()

	var rep Report[T]
	for _, o := range outcomes {
		status := "ok"
		if o.Err != nil {
			status = string(o.Err.Kind)
			rep.Failures = append(rep.Failures, o)
		} else {
			rep.Successes = append(rep.Successes, o)
		}
		observability.FanoutSubrequestsTotal.WithLabelValues(opts.Label, status).Inc()
	}

	debug.Log("fanout", "settled", "label", opts.Label,
		"ok", len(rep.Successes), "failed", len(rep.Failures))

	if len(rep.Successes) == 0 {
		return rep, combine(rep.Failures)
	}
	return rep, nil
}

func runOne[T any](ctx context.Context, opts Options, task Task[T]) Outcome[T] {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	type settled struct {
		v   T
		err error
	}
	done := make(chan settled, 1)
	go func() {
		v, err := task.Run(ctx)
		done <- settled{v, err}
	}()

	select {
	case s := <-done:
		if s.err != nil {
			return Outcome[T]{Name: task.Name, Err: api.Normalize(task.Name, s.err)}
		}
		return Outcome[T]{Name: task.Name, Value: s.v}
	case <-ctx.Done():
		return Outcome[T]{Name: task.Name, Err: api.Normalize(task.Name, ctx.Err())}
	}
}

// combine folds the failures of an all-failed fan-out into one error. The
// kind is that of the first failure; the policy flag is set only when every
// failure was a policy rejection.
func combine[T any](failures []Outcome[T]) *api.Error {
	first := failures[0].Err
	msgs := make([]string, 0, len(failures))
	policy := true
	for _, f := range failures {
		msgs = append(msgs, f.Name+": "+f.Err.Message)
		policy = policy && f.Err.PolicyViolation
	}
	return &api.Error{
		Kind:            first.Kind,
		Provider:        first.Provider,
		Status:          first.Status,
		Message:         "all sub-requests failed: " + strings.Join(msgs, "; "),
		PolicyViolation: policy,
	}
}
