package prefs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-prefs/pkg/activity"
)

// startSave spawns one fire-and-forget background save of snapshot. Encode
// and write failures are logged and dropped; the next qualifying tick
// retries naturally. Overlapping saves for the same key are allowed and the
// backend's last-writer-wins behavior is accepted.
func (r *Runtime[T]) startSave(ctx context.Context, snapshot T) {
	id := uuid.New()
	r.runner.Go(func() {
		start := time.Now()

		data, err := r.codec.Encode(snapshot)
		if err != nil {
			r.logger.Log(LogEvent{Op: "save", Ref: r.ref, TaskID: id.String(), Err: err})
			r.emit(ctx, activity.BuildSaveFailedEvent(activity.EventInput{
				Identity: r.identity,
				Key:      r.key,
				TaskID:   id.String(),
				Err:      err,
			}))
			return
		}

		if err := r.store.Write(ctx, r.key, data); err != nil {
			r.logger.Log(LogEvent{Op: "write", Ref: r.ref, TaskID: id.String(), Err: err})
			r.emit(ctx, activity.BuildSaveFailedEvent(activity.EventInput{
				Identity: r.identity,
				Key:      r.key,
				TaskID:   id.String(),
				Err:      err,
			}))
			return
		}

		r.logger.Log(LogEvent{
			Op:       "save",
			Ref:      r.ref,
			TaskID:   id.String(),
			Duration: time.Since(start),
		})
		r.emit(ctx, activity.BuildSavedEvent(activity.EventInput{
			Identity: r.identity,
			Key:      r.key,
			TaskID:   id.String(),
		}))
	})
}
