package prefs

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleContext carries the inputs for evaluating one guard rule against a
// decoded record.
type RuleContext struct {
	// Snapshot is the decoded record as a field-name-keyed map.
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Ref      Ref
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) refLabel() string {
	return ctx.Ref.label()
}

func (ctx RuleContext) refBinding() map[string]any {
	binding := map[string]any{"name": ctx.Ref.Name}
	if ctx.Ref.Scope != "" {
		binding["scope"] = ctx.Ref.Scope
	}
	if ctx.Ref.ID != "" {
		binding["id"] = ctx.Ref.ID
	}
	return binding
}

// Evaluator executes guard rule expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// recordSnapshot converts a typed preference value into the field-name-keyed
// map guard rules evaluate against, using the same JSON field naming as the
// durable record.
func recordSnapshot[T any](value T) (map[string]any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("prefs: snapshot record: %w", err)
	}
	var snapshot map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("prefs: snapshot record: %w", err)
	}
	return snapshot, nil
}
