package tick

import "time"

// Task is the unit of periodic work for statically dispatched gates.
type Task interface {
	Task()
}

// Runner drives a concrete task type at most once per period. The task
// type is a type parameter, so dispatch resolves at compile time and
// polling allocates nothing.
type Runner[T Task] struct {
	Gate
	task T
}

// NewRunner returns a Runner that polls task's Task method at most once
// per period.
func NewRunner[T Task](period time.Duration, task T, opts ...Option) *Runner[T] {
	r := &Runner[T]{Gate: Gate{clock: Now, period: Span(period)}, task: task}
	for _, o := range opts {
		o(&r.Gate)
	}
	return r
}

// Run polls the gate and dispatches the task when due. Same contract as
// Periodic.Run: rebase before dispatch, panics unwind untouched.
func (r *Runner[T]) Run() {
	if r.Allow() {
		r.task.Task()
	}
}

// Unit returns the task the runner drives.
func (r *Runner[T]) Unit() T { return r.task }

// Poller is the common poll surface of Periodic and Runner. Owners keep
// heterogeneous gated work in one slice and poll it in a fixed order.
type Poller interface {
	Run()
}
