package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exporter exposes a System snapshot as Prometheus gauges. The teacher's
// own stats package tracks named metrics behind a StatsD/Prometheus build
// tag; no Prometheus-specific file survived into the retrieved slice, so
// this is built directly against client_golang rather than copied from a
// teacher file.
type Exporter struct {
	registry *prometheus.Registry

	mainMemoryMBytes  prometheus.Gauge
	videoMemoryMBytes prometheus.Gauge
	numCores          prometheus.Gauge
	numThreads        prometheus.Gauge
	storageAvailable  prometheus.Gauge
	storageWriteBPS   prometheus.Gauge
	deviceClass       prometheus.Gauge
}

// NewExporter registers the adkcore_system_* gauges on a fresh registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		mainMemoryMBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adkcore_system_main_memory_mbytes",
			Help: "Main memory available to the device, in megabytes.",
		}),
		videoMemoryMBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adkcore_system_video_memory_mbytes",
			Help: "Video memory available to the device, in megabytes.",
		}),
		numCores: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adkcore_system_num_cores",
			Help: "Number of physical CPU cores.",
		}),
		numThreads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adkcore_system_num_hardware_threads",
			Help: "Number of hardware threads.",
		}),
		storageAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adkcore_system_storage_available_bytes",
			Help: "Persistent storage available to the device, in bytes.",
		}),
		storageWriteBPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adkcore_system_storage_max_write_bps",
			Help: "Maximum sustained persistent storage write rate, in bytes per second.",
		}),
		deviceClass: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adkcore_system_device_class",
			Help: "Device class enum value (see metrics.DeviceClass).",
		}),
	}
	e.registry.MustRegister(
		e.mainMemoryMBytes,
		e.videoMemoryMBytes,
		e.numCores,
		e.numThreads,
		e.storageAvailable,
		e.storageWriteBPS,
		e.deviceClass,
	)
	return e
}

// Registry returns the underlying registry, for wiring into
// promhttp.HandlerFor by the caller.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Set updates every gauge from a System snapshot.
func (e *Exporter) Set(s System) {
	e.mainMemoryMBytes.Set(float64(s.MainMemoryMBytes))
	e.videoMemoryMBytes.Set(float64(s.VideoMemoryMBytes))
	e.numCores.Set(float64(s.NumCores))
	e.numThreads.Set(float64(s.NumHardwareThreads))
	e.storageAvailable.Set(float64(s.StorageAvailableBytes))
	e.storageWriteBPS.Set(float64(s.StorageMaxWriteBPS))
	e.deviceClass.Set(float64(s.DeviceClass))
}
