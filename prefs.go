package prefs

import (
	"context"
	"errors"

	"github.com/goliatone/go-prefs/internal/overlay"
	"github.com/goliatone/go-prefs/pkg/activity"
)

// Runtime wires one preference set: it owns the set's Status, its storage
// key, and the per-tick load/save scheduling. Instances are explicit — one
// Runtime per (set type, ref) pair, passed by handle, never a process-wide
// registry keyed by type.
type Runtime[T any] struct {
	ref      Ref
	key      string
	defaults T
	binding  Binding[T]
	store    Store
	codec    Codec[T]
	runner   Runner
	logger   Logger

	rules     []string
	evaluator Evaluator

	emitter  *activity.Emitter
	identity activity.Identity

	status Status
	load   *loadTask[T]
}

// New registers one preference set against a storage backend. defaults is
// the value installed before the load completes and the base every decoded
// record overlays.
func New[T any](binding Binding[T], store Store, ref Ref, defaults T, opts ...Option[T]) (*Runtime[T], error) {
	if binding == nil {
		return nil, errors.New("prefs: binding is required")
	}
	if store == nil {
		return nil, errors.New("prefs: store is required")
	}
	key, err := ref.Key()
	if err != nil {
		return nil, err
	}

	cfg := applyOptions(opts)
	r := &Runtime[T]{
		ref:       ref,
		key:       key,
		defaults:  overlay.Clone(defaults),
		binding:   binding,
		store:     store,
		codec:     cfg.codec,
		runner:    cfg.runner,
		logger:    cfg.logger,
		rules:     cfg.rules,
		evaluator: cfg.evaluator,
		emitter:   cfg.emitter,
		identity:  cfg.identity,
	}
	if r.codec == nil {
		r.codec = JSONCodec[T]{}
	}
	if r.runner == nil {
		r.runner = goroutineRunner{}
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	if len(r.rules) > 0 && r.evaluator == nil {
		var exprOpts []ExprEvaluatorOption
		if cfg.cache != nil {
			exprOpts = append(exprOpts, ExprWithProgramCache(cfg.cache))
		}
		if cfg.functions != nil {
			exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
		}
		r.evaluator = NewExprEvaluator(exprOpts...)
	}
	return r, nil
}

// Startup installs the defaults into the host container and schedules the
// background load. Call once from the mutation domain before ticking.
func (r *Runtime[T]) Startup(ctx context.Context) {
	r.status = Status{}
	r.binding.Install(overlay.Clone(r.defaults))
	// Installing defaults marks every field changed; absorb the flags so
	// the first tick does not mistake initialization for user edits.
	r.binding.Dirty()
	r.load = r.startLoad(ctx)
}

// Tick runs the ordered per-tick pair: apply a completed load, then decide
// whether to spawn a save. Call once per host tick from the mutation domain.
func (r *Runtime[T]) Tick(ctx context.Context) {
	justLoaded := r.pollLoad()
	r.maybeSave(ctx, justLoaded)
}

// pollLoad applies a completed load's mutation batch in one pass: every
// field replaces its default together, then the status flips.
func (r *Runtime[T]) pollLoad() bool {
	batch, ok := r.load.poll()
	if !ok {
		return false
	}
	batch.Apply()
	r.load.state = loadApplied
	r.load = nil
	return true
}

// maybeSave is the per-tick save trigger: no-op when no field changed, and
// no-op on the tick a load was applied — freshly populated fields would
// otherwise look identical to user edits. Exactly one save task is spawned
// per qualifying tick regardless of how many fields changed.
func (r *Runtime[T]) maybeSave(ctx context.Context, justLoaded bool) {
	if !r.binding.Dirty() {
		return
	}
	if justLoaded {
		return
	}
	r.startSave(ctx, r.binding.Snapshot())
}

// Status returns the current load status.
func (r *Runtime[T]) Status() Status {
	return r.status
}

// Loaded reports whether the startup load has been applied, for gating
// logic that depends on restored preferences.
func (r *Runtime[T]) Loaded() bool {
	return r.status.Loaded
}

// Ref returns the ref this runtime was registered with.
func (r *Runtime[T]) Ref() Ref {
	return r.ref
}

// Key returns the resolved storage key.
func (r *Runtime[T]) Key() string {
	return r.key
}

func (r *Runtime[T]) emit(ctx context.Context, event activity.Event) {
	if !r.emitter.Enabled() {
		return
	}
	if err := r.emitter.Emit(ctx, event); err != nil {
		r.logger.Log(LogEvent{Op: "audit", Ref: r.ref, Err: err})
	}
}
