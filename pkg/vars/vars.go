// Package vars provides a minimal change-tracked state container for hosts
// that do not bring their own. Each Var is one independently settable field
// slot with a changed-since-last-tick flag; per-type prefs bindings read the
// flags once per tick and clear them.
//
// Vars belong to the mutation domain and are not safe for concurrent use.
package vars

// Var holds one field value and its per-tick change flag.
type Var[V any] struct {
	value   V
	changed bool
}

// New constructs a Var holding value with a clear change flag.
func New[V any](value V) *Var[V] {
	return &Var[V]{value: value}
}

// Get returns the current value. Values are copied by assignment; fields
// holding reference types should store clones if the caller may mutate
// them.
func (v *Var[V]) Get() V {
	return v.value
}

// Set replaces the value and marks the slot changed.
func (v *Var[V]) Set(value V) {
	v.value = value
	v.changed = true
}

// Changed reports whether Set was called since the last ClearChanged.
func (v *Var[V]) Changed() bool {
	return v.changed
}

// ClearChanged resets the change flag at a tick boundary.
func (v *Var[V]) ClearChanged() {
	v.changed = false
}
