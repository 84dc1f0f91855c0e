package report

import "fmt"

// Sentry protocol constants, grounded on adk_reporting_sentry.c's auth
// header and event builder (sentry_version/sentry_client/sentry_platform).
const (
	sentryVersion  = "7"
	sentryClient   = "adk_reporting_sentry"
	sentryPlatform = "other"
)

type sentryMessage struct {
	Formatted string `json:"formatted"`
}

type stackFrame struct {
	InstructionAddr string `json:"instruction_addr"`
}

type stacktrace struct {
	Frames []stackFrame `json:"frames"`
}

type sentryExceptionValue struct {
	Type       string      `json:"type"`
	Value      string      `json:"value"`
	Stacktrace *stacktrace `json:"stacktrace,omitempty"`
}

type sentryException struct {
	Values []sentryExceptionValue `json:"values"`
}

// sentryEvent is the JSON body posted to Sentry's store endpoint, built by
// newEvent and finished with attachMessage or attachException before being
// queued. Field order matches adk_reporting_build_event_json.
type sentryEvent struct {
	EventID     string            `json:"event_id"`
	Release     string            `json:"release"`
	Environment string            `json:"environment"`
	Platform    string            `json:"platform"`
	Logger      string            `json:"logger"`
	Level       string            `json:"level"`
	Timestamp   int64             `json:"timestamp"`
	Transaction string            `json:"transaction"`
	Tags        map[string]string `json:"tags,omitempty"`
	Contexts    map[string]any    `json:"contexts,omitempty"`
	Message     *sentryMessage    `json:"message,omitempty"`
	Exception   *sentryException  `json:"exception,omitempty"`
}

// transaction formats "file::func.line", mirroring
// adk_reporting_sentry_get_transaction.
func transaction(file, function string, line int) string {
	return fmt.Sprintf("%s::%s.%d", file, function, line)
}

// mergeTags flattens instance tags followed by per-call tags into a single
// map, later entries winning - instance tags are applied first so a
// per-call tag of the same key takes precedence, matching the traversal
// order in adk_reporting_build_event_json.
func mergeTags(instanceTags, callTags tagList) map[string]string {
	if len(instanceTags) == 0 && len(callTags) == 0 {
		return nil
	}
	out := make(map[string]string, len(instanceTags)+len(callTags))
	for _, t := range instanceTags {
		out[t.Key] = t.Value
	}
	for _, t := range callTags {
		out[t.Key] = t.Value
	}
	return out
}

func attachMessage(e *sentryEvent, message string) {
	e.Message = &sentryMessage{Formatted: message}
}

func attachException(e *sentryEvent, errType, errMessage string, stackFrames []uintptr) {
	val := sentryExceptionValue{Type: errType, Value: errMessage}
	if len(stackFrames) > 0 {
		frames := make([]stackFrame, len(stackFrames))
		for i, addr := range stackFrames {
			frames[i] = stackFrame{InstructionAddr: fmt.Sprintf("0x%x", addr)}
		}
		val.Stacktrace = &stacktrace{Frames: frames}
	}
	e.Exception = &sentryException{Values: []sentryExceptionValue{val}}
}
