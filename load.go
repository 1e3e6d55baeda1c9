package prefs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-prefs/internal/overlay"
	"github.com/goliatone/go-prefs/pkg/activity"
)

// Batch is a deferred mutation set built on the background domain and
// applied in one pass on the mutation domain. The batch owns the values it
// writes; nothing is shared with the worker that produced it.
type Batch []func()

// Apply runs every mutation in order.
func (b Batch) Apply() {
	for _, fn := range b {
		if fn != nil {
			fn()
		}
	}
}

type loadState int

const (
	loadIdle loadState = iota
	loadRunning
	loadCompleted
	loadApplied
)

// loadTask tracks one in-flight startup load. Its state belongs to the
// mutation domain; the background worker hands its result over through the
// buffered done channel and never touches the task again.
type loadTask[T any] struct {
	id    uuid.UUID
	state loadState
	done  chan Batch
}

// poll reports the completed batch without blocking. It yields a batch at
// most once per task.
func (t *loadTask[T]) poll() (Batch, bool) {
	if t == nil || t.state != loadRunning {
		return nil, false
	}
	select {
	case batch := <-t.done:
		t.state = loadCompleted
		return batch, true
	default:
		return nil, false
	}
}

func (r *Runtime[T]) startLoad(ctx context.Context) *loadTask[T] {
	task := &loadTask[T]{
		id:    uuid.New(),
		state: loadRunning,
		done:  make(chan Batch, 1),
	}
	binding := r.binding
	status := &r.status
	r.runner.Go(func() {
		start := time.Now()
		value := r.fetch(ctx, task.id)
		r.logger.Log(LogEvent{
			Op:       "load",
			Ref:      r.ref,
			TaskID:   task.id.String(),
			Duration: time.Since(start),
		})
		r.emit(ctx, activity.BuildLoadedEvent(activity.EventInput{
			Identity: r.identity,
			Key:      r.key,
			TaskID:   task.id.String(),
		}))
		task.done <- Batch{
			func() { binding.Install(value) },
			func() { status.Loaded = true },
		}
	})
	return task
}

// fetch produces the value the batch will install: the stored record when
// present and acceptable, the defaults otherwise. Runs on the background
// domain and never fails hard.
func (r *Runtime[T]) fetch(ctx context.Context, taskID uuid.UUID) T {
	data, ok, err := r.store.Read(ctx, r.key)
	if err != nil {
		r.logger.Log(LogEvent{Op: "load", Ref: r.ref, TaskID: taskID.String(), Err: err})
		return overlay.Clone(r.defaults)
	}
	if !ok {
		// No prior record. Not an error; first run uses defaults.
		return overlay.Clone(r.defaults)
	}

	value, err := r.codec.Decode(data, r.defaults)
	if err != nil {
		// Lenient decode: affected fields already fell back to defaults.
		r.logger.Log(LogEvent{Op: "decode", Ref: r.ref, TaskID: taskID.String(), Err: err})
	}

	if err := r.checkRules(value); err != nil {
		r.logger.Log(LogEvent{Op: "rule", Ref: r.ref, TaskID: taskID.String(), Err: err})
		return overlay.Clone(r.defaults)
	}
	return value
}

// checkRules evaluates every configured guard rule against the decoded
// record. Rules see the record as a field-name-keyed snapshot map.
func (r *Runtime[T]) checkRules(value T) error {
	if len(r.rules) == 0 {
		return nil
	}
	snapshot, err := recordSnapshot(value)
	if err != nil {
		return err
	}
	for _, expr := range r.rules {
		result, err := r.evaluator.Evaluate(RuleContext{Snapshot: snapshot, Ref: r.ref}, expr)
		if err != nil {
			return &RuleError{Expr: expr, Err: err}
		}
		if accepted, ok := result.(bool); !ok || !accepted {
			return &RuleError{Expr: expr}
		}
	}
	return nil
}
