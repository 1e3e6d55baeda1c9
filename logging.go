package prefs

import "time"

// LogEvent describes one persistence operation for logging.
type LogEvent struct {
	// Op is one of "load", "decode", "rule", "save", "write" or "audit".
	Op       string
	Ref      Ref
	TaskID   string
	Duration time.Duration
	Err      error
}

// Logger records persistence events. Background tasks report failures only
// through this interface; nothing crosses back into the mutation domain.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}
