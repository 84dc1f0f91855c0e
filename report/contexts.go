package report

import "github.com/nvstream/adk-core/metrics"

// buildContexts mirrors adk_reporting_sentry_contexts_generate: device/os/gpu
// sub-objects derived from a metrics.System snapshot, computed once at
// reporter creation and shared by reference across every event (the C
// original deletes everything in an event except this object).
func buildContexts(s metrics.System) map[string]any {
	return map[string]any{
		"device": map[string]any{
			"name":        s.Device,
			"model":       s.DeviceClass.SentryName(),
			"model_id":    s.DeviceID,
			"arch":        s.CPU,
			"memory_size": s.MainMemoryMBytes,
			"num_cores":   s.NumCores,
			"num_threads": s.NumHardwareThreads,
		},
		"os": map[string]any{
			"name":    s.Software,
			"version": s.Revision,
		},
		"gpu": map[string]any{
			"name":        s.GPU,
			"memory_size": s.VideoMemoryMBytes,
		},
	}
}
