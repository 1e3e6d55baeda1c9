package activity

import (
	"strings"
	"time"
)

// Identity describes who the persistence activity is attributed to.
type Identity struct {
	ActorID  string
	UserID   string
	TenantID string
	Channel  string
}

// EventInput carries the common fields for preference lifecycle events.
type EventInput struct {
	Identity   Identity
	Key        string
	TaskID     string
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildLoadedEvent constructs an event for a completed preference load.
func BuildLoadedEvent(input EventInput) Event {
	return buildPrefsEvent("prefs.loaded", input)
}

// BuildSavedEvent constructs an event for a persisted preference snapshot.
func BuildSavedEvent(input EventInput) Event {
	return buildPrefsEvent("prefs.saved", input)
}

// BuildSaveFailedEvent constructs an event for a dropped save.
func BuildSaveFailedEvent(input EventInput) Event {
	return buildPrefsEvent("prefs.save_failed", input)
}

func buildPrefsEvent(verb string, input EventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.TaskID != "" {
		metadata = ensureMetadata(metadata)
		metadata["task_id"] = input.TaskID
	}
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata["error"] = input.Err.Error()
	}

	objectID := strings.TrimSpace(input.Key)
	if objectID == "" {
		objectID = "prefs"
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.Identity.ActorID),
		UserID:     strings.TrimSpace(input.Identity.UserID),
		TenantID:   strings.TrimSpace(input.Identity.TenantID),
		ObjectType: "prefs",
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Identity.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
