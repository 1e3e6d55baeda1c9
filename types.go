package prefs

import (
	"github.com/goliatone/go-prefs/pkg/activity"
)

// Binding is the per-type glue between a Runtime and the host's
// independently owned fields. Implementations are emitted by a code
// generator or written as per-type boilerplate; every method runs on the
// mutation domain.
type Binding[T any] interface {
	// Install writes every field of value into the host container.
	Install(value T)
	// Snapshot clones every field's current host value into one aggregate.
	Snapshot() T
	// Dirty reports whether any field changed since the previous tick and
	// clears the per-tick change flags.
	Dirty() bool
}

// Status reports load completion for one preference set. Loaded flips from
// false to true exactly once, when the startup load's mutation batch is
// applied.
type Status struct {
	Loaded bool
}

// Runner spawns background work. The default runner starts a goroutine per
// task; hosts with their own worker pool supply an adapter.
type Runner interface {
	Go(fn func())
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(fn func())

// Go implements Runner.
func (f RunnerFunc) Go(fn func()) {
	if f != nil {
		f(fn)
	}
}

type goroutineRunner struct{}

func (goroutineRunner) Go(fn func()) {
	go fn()
}

// Option configures a Runtime.
type Option[T any] func(*config[T])

type config[T any] struct {
	codec     Codec[T]
	runner    Runner
	logger    Logger
	rules     []string
	evaluator Evaluator
	cache     ProgramCache
	functions *FunctionRegistry
	emitter   *activity.Emitter
	identity  activity.Identity
}

func applyOptions[T any](opts []Option[T]) config[T] {
	cfg := config[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithCodec replaces the default JSON codec.
func WithCodec[T any](codec Codec[T]) Option[T] {
	return func(cfg *config[T]) {
		cfg.codec = codec
	}
}

// WithRunner replaces the default goroutine runner.
func WithRunner[T any](runner Runner) Option[T] {
	return func(cfg *config[T]) {
		cfg.runner = runner
	}
}

// WithLogger attaches a logger for persistence events.
func WithLogger[T any](logger Logger) Option[T] {
	return func(cfg *config[T]) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithGuard appends guard rules evaluated against every decoded record. A
// rule that errors or returns anything but true rejects the record and the
// load degrades to defaults.
func WithGuard[T any](exprs ...string) Option[T] {
	return func(cfg *config[T]) {
		cfg.rules = append(cfg.rules, exprs...)
	}
}

// WithEvaluator configures the engine used for guard rules. When absent, an
// expr-lang evaluator is constructed on first use.
func WithEvaluator[T any](e Evaluator) Option[T] {
	return func(cfg *config[T]) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a compiled-rule cache.
func WithProgramCache[T any](cache ProgramCache) Option[T] {
	return func(cfg *config[T]) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry configures custom functions available to guard rules.
func WithFunctionRegistry[T any](registry *FunctionRegistry) Option[T] {
	return func(cfg *config[T]) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for guard rules.
func WithCustomFunction[T any](name string, fn Function) Option[T] {
	return func(cfg *config[T]) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithEmitter attaches an activity emitter for lifecycle audit events.
func WithEmitter[T any](emitter *activity.Emitter) Option[T] {
	return func(cfg *config[T]) {
		cfg.emitter = emitter
	}
}

// WithIdentity sets the identity attributed to emitted audit events.
func WithIdentity[T any](identity activity.Identity) Option[T] {
	return func(cfg *config[T]) {
		cfg.identity = identity
	}
}
