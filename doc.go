// Package prefs persists a set of named, independently mutable application
// state fields (a "preference set") as one serialized record, and restores
// that record asynchronously at startup without blocking the host's tick
// loop.
//
// Responsibilities:
//   - Runtime[T] owns the per-set wiring: it installs defaults, schedules one
//     background load at startup, and runs the per-tick poll/save sequence.
//   - Binding[T] is the per-type glue a host supplies (by hand or from a
//     generator): install a value into the host container, snapshot the
//     current field values, and report-and-clear the per-tick change flags.
//   - Codec[T] crosses the text/value boundary. The default JSONCodec emits
//     a pretty, field-name-keyed record and decodes with a default-then-
//     overlay rule, so records missing newly added fields still load.
//   - Store is the byte-level backend: a filesystem directory, an in-memory
//     map, or the sqlitestore package for durable single-file storage.
//
// Concurrency model:
//
// Everything inside Startup and Tick runs on the host's single mutation
// domain. Encode/decode and storage I/O run on a background Runner. Results
// cross back as a Batch of deferred mutations applied in a later tick's poll
// step; values move by ownership transfer, never by shared access.
//
// No failure in this package is fatal to the host: a missing or corrupt
// record degrades to defaults, a failed save is dropped and retried
// naturally on the next qualifying tick.
package prefs
