// Package report implements a bounded send-queue and Sentry-compatible
// event reporter (§7): event JSON is built from a device's system metrics
// and caller-supplied tags, queued, and drained on Tick through an
// AsyncClient rather than blocking the caller. Grounded on
// _examples/original_source/source/adk/reporting/private/adk_reporting_sentry.c
// and adk_reporting_send_queue.c.
package report

// Level is an event's severity, gating it against a reporter's configured
// minimum report level (adk_reporting_event_level_e).
type Level int

const (
	LevelUnknown Level = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

// String returns the lowercase name Sentry expects in an event's "level"
// field.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
