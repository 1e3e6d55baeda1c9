package prefs

import (
	"errors"
	"fmt"
	"strings"
)

// Ref identifies one preference set's persisted record. Name alone is enough
// for application-global sets; Scope and ID key per-owner records (a user, a
// profile, a save slot). Each distinct key has a fully independent record
// and lifecycle.
type Ref struct {
	Name  string
	Scope string
	ID    string
}

// Key returns the deterministic storage key for the ref: "settings" for an
// unscoped set, "user/u42/settings" for a scoped one.
func (r Ref) Key() (string, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "", errors.New("prefs: ref name is required")
	}
	scope := strings.TrimSpace(r.Scope)
	id := strings.TrimSpace(r.ID)
	if scope == "" {
		if id != "" {
			return "", fmt.Errorf("prefs: ref id %q requires a scope", id)
		}
		return name, nil
	}
	if id == "" {
		return "", fmt.Errorf("prefs: ref scope %q requires an id", scope)
	}
	return fmt.Sprintf("%s/%s/%s", scope, id, name), nil
}

func (r Ref) label() string {
	if key, err := r.Key(); err == nil {
		return key
	}
	return "unknown"
}
