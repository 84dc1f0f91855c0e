// Command adkcored is a demo binary wiring together every subsystem this
// module implements: the bifurcated heap, the cncbus message bus, the
// content cache, the send-queue reporter, the heartbeat watchdog, and the
// persona lookup, the way a real embedded host process would start them up.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"

	"github.com/nvstream/adk-core/cache"
	"github.com/nvstream/adk-core/cmn/cos"
	"github.com/nvstream/adk-core/cmn/nlog"
	"github.com/nvstream/adk-core/cmn/xcrypto"
	"github.com/nvstream/adk-core/cncbus"
	"github.com/nvstream/adk-core/config"
	"github.com/nvstream/adk-core/hk"
	"github.com/nvstream/adk-core/ios"
	"github.com/nvstream/adk-core/memsys/bifurcated"
	"github.com/nvstream/adk-core/memsys/heap"
	"github.com/nvstream/adk-core/metrics"
	"github.com/nvstream/adk-core/persona"
	"github.com/nvstream/adk-core/report"
	"github.com/nvstream/adk-core/sys"
	transporthttp "github.com/nvstream/adk-core/transport/http"
	"github.com/nvstream/adk-core/watchdog"
)

var (
	build     string
	buildtime string

	configPath  string
	appRoot     string
	logDir      string
	metricsAddr string
)

func init() {
	flag.StringVar(&configPath, "config", "adkcore.toml", "configuration file")
	flag.StringVar(&appRoot, "app-root", ".", "application root directory (app_config and app_cache live under it)")
	flag.StringVar(&logDir, "log-dir", "log", "log output directory")
	flag.StringVar(&metricsAddr, "metrics-addr", ":9110", "Prometheus exposition listen address")
}

func main() {
	flag.Parse()
	nlog.SetLogDir(logDir)
	defer nlog.Flush(true)

	cfg, err := config.Load(configPath)
	if err != nil {
		cos.ExitLogf("failed to load configuration from %q: %v", configPath, err)
	}
	nlog.Infof("adkcored %s (build %s) starting, app_root=%s", build, buildtime, appRoot)

	sys, err := buildSystemMetrics(appRoot, cfg)
	if err != nil {
		cos.ExitLogf("failed to build system metrics: %v", err)
	}
	if err := sys.Validate(); err != nil {
		cos.ExitLogf("system metrics invalid: %v", err)
	}

	mem, err := newMemSystem(cfg)
	if err != nil {
		cos.ExitLogf("failed to initialize memory subsystem: %v", err)
	}
	defer mem.destroy()
	if err := mem.selfCheck(); err != nil {
		cos.ExitLogf("memory subsystem self-check failed: %v", err)
	}

	bus := cncbus.New(mem.busHeap)
	selfAddr := cncbus.MakeAddress(127, 0, 0, 1)
	logReceiver := &loggingReceiver{addr: selfAddr}
	bus.Connect(logReceiver)

	cacheRoot := filepath.Join(appRoot, cfg.Cache.Root)
	contentCache, err := cache.New(cacheRoot)
	if err != nil {
		cos.ExitLogf("failed to initialize cache at %q: %v", cacheRoot, err)
	}

	rep, err := newReporter(cfg, sys)
	if err != nil {
		cos.ExitLogf("failed to initialize reporter: %v", err)
	}

	wd := watchdog.New(
		5*time.Second,
		time.Duration(cfg.Watchdog.WarningDelayMS)*time.Millisecond,
		time.Duration(cfg.Watchdog.FatalDelayMS)*time.Millisecond,
	)
	wd.OnFatal = func(message string) {
		nlog.Errorln("watchdog:", message)
		rep.ReportMessage("main.go", 0, "main", report.LevelFatal, nil, message)
		os.Exit(1)
	}
	wd.Start()
	defer wd.Shutdown()

	go serveMetrics(sys)

	ctx, cancel := signalContext()
	defer cancel()

	runMainLoop(ctx, bus, selfAddr, contentCache, rep, wd)

	nlog.Infof("adkcored shutting down")
}

const tickInterval = 100 * time.Millisecond

// registerTicks wires the watchdog heartbeat, bus dispatch, and reporter
// drain onto the housekeeper's polling loop instead of giving each its own
// goroutine and ticker.
func registerTicks(h *hk.Housekeeper, bus *cncbus.Bus, rep *report.Reporter, wd *watchdog.Watchdog) {
	h.Reg("watchdog.tick", func() time.Duration {
		wd.Tick()
		return tickInterval
	}, tickInterval)
	h.Reg("cncbus.dispatch", func() time.Duration {
		bus.Dispatch(cncbus.DispatchFlush)
		return tickInterval
	}, tickInterval)
	h.Reg("report.tick", func() time.Duration {
		rep.Tick()
		return tickInterval
	}, tickInterval)
}

// memSystem owns every heap region this process allocates.
type memSystem struct {
	low, high *heap.Heap
	general   *bifurcated.Heap
	busHeap   *heap.Heap
}

func newMemSystem(cfg *config.Config) (*memSystem, error) {
	low, err := newHeap(cfg.Bifurcated.Low, "low")
	if err != nil {
		return nil, err
	}
	high, err := newHeap(cfg.Bifurcated.High, "high")
	if err != nil {
		return nil, err
	}
	busHeap, err := heap.NewGuarded(cfg.Bus.QueueDepth*cfg.Bus.MaxMsgBytes, 16, "bus")
	if err != nil {
		return nil, err
	}
	return &memSystem{
		low:     low,
		high:    high,
		general: bifurcated.New(low, high, int(cfg.Bifurcated.ThresholdBytes)),
		busHeap: busHeap,
	}, nil
}

// selfCheck exercises the bifurcated router with one allocation on each
// side of its threshold, confirming both heaps are reachable before the
// rest of the process starts depending on them.
func (m *memSystem) selfCheck() error {
	small, err := m.general.Alloc(m.general.Threshold/2, "selfcheck.low")
	if err != nil {
		return fmt.Errorf("low-side allocation: %w", err)
	}
	m.general.Free(small)

	large, err := m.general.Alloc(m.general.Threshold*2, "selfcheck.high")
	if err != nil {
		return fmt.Errorf("high-side allocation: %w", err)
	}
	m.general.Free(large)
	return nil
}

func newHeap(h config.Heap, name string) (*heap.Heap, error) {
	if h.GuardPages {
		return heap.NewGuarded(int(h.SizeBytes), 16, name)
	}
	region := make([]byte, h.SizeBytes)
	return heap.New(region, 16, name), nil
}

func (m *memSystem) destroy() {
	if err := m.busHeap.Destroy(); err != nil {
		nlog.Warningf("destroying bus heap: %v", err)
	}
	if err := m.low.Destroy(); err != nil {
		nlog.Warningf("destroying low heap: %v", err)
	}
	if err := m.high.Destroy(); err != nil {
		nlog.Warningf("destroying high heap: %v", err)
	}
}

func buildSystemMetrics(appRoot string, cfg *config.Config) (metrics.System, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown_host"
	}
	deviceID, err := xcrypto.ComputeDeviceIDHex(cos.UnsafeB(hostname))
	if err != nil {
		return metrics.System{}, fmt.Errorf("computing device id: %w", err)
	}

	personaID := ""
	if mapping, err := persona.Load(appRoot, "persona.json", ""); err == nil {
		personaID = mapping.ID
	} else {
		nlog.Warningf("persona lookup skipped: %v", err)
	}

	var storageAvailable int64
	if fs, err := ios.GetFSStats(appRoot); err == nil {
		storageAvailable = fs.AvailableBytes()
	} else {
		nlog.Warningf("storage stats skipped: %v", err)
	}

	return metrics.System{
		Vendor:        "nvstream",
		Partner:       "nvstream",
		Device:        "adkcored",
		Software:      "adk_core",
		GPU:           "none",
		CPU:           runtime.GOARCH,
		DeviceID:      deviceID,
		DeviceRegion:  "us",
		Tenancy:       cfg.Tenancy,
		PartnerGUID:   "00000000-0000-0000-0000-000000000000",
		AdvertisingID: "0000_0000",

		MainMemoryMBytes:      cfg.Bifurcated.Low.SizeBytes>>20 + cfg.Bifurcated.High.SizeBytes>>20,
		NumCores:              sys.NumCPU(),
		NumHardwareThreads:    runtime.NumCPU(),
		DeviceClass:           metrics.DeviceClassDesktopPC,
		PersonaID:             personaID,
		StorageAvailableBytes: storageAvailable,
	}, nil
}

func newReporter(cfg *config.Config, sys metrics.System) (*report.Reporter, error) {
	if cfg.Report.DSN == "" {
		nlog.Infof("no reporter DSN configured; the reporter cannot be created without one")
	}
	client := transporthttp.NewFastHTTPAsyncClient()
	r, err := report.New(report.Options{
		DSN:            cfg.Report.DSN,
		ReporterName:   "adkcored",
		Release:        fmt.Sprintf("adk-core@%s", build),
		MinReportLevel: parseLevel(cfg.Report.MinSeverity),
		SendQueueSize:  cfg.Report.MaxQueueLen,
		Client:         client,
		Metrics:        sys,
		SentStatus: func(success bool, errorMessage string) {
			if !success {
				nlog.Warningf("report: delivery failed: %s", errorMessage)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	r.PushTag("instance_software_version", "adk-core@"+build)
	return r, nil
}

func parseLevel(s string) report.Level {
	switch s {
	case "debug":
		return report.LevelDebug
	case "info":
		return report.LevelInfo
	case "warning":
		return report.LevelWarning
	case "error":
		return report.LevelError
	case "fatal":
		return report.LevelFatal
	default:
		return report.LevelError
	}
}

func serveMetrics(sys metrics.System) {
	exporter := metrics.NewExporter()
	exporter.Set(sys)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(exporter.Registry(), promhttp.HandlerOpts{}))
	nlog.Infof("serving metrics on %s/metrics", metricsAddr)
	if err := http.ListenAndServe(metricsAddr, mux); err != nil {
		nlog.Warningf("metrics server stopped: %v", err)
	}
}

// loggingReceiver is a minimal cncbus.Receiver that logs every message it
// is dispatched, standing in for a real subsystem connecting to the bus.
type loggingReceiver struct {
	addr cncbus.Address
}

func (r *loggingReceiver) Address() cncbus.Address { return r.addr }

func (r *loggingReceiver) OnMessage(hdr cncbus.MsgHeader, body []byte) {
	nlog.Infof("cncbus: received %d bytes from reply address %s", hdr.Size, hdr.ReplyAddress)
	_ = body
}

func runMainLoop(ctx context.Context, bus *cncbus.Bus, selfAddr cncbus.Address, c *cache.Cache, rep *report.Reporter, wd *watchdog.Watchdog) {
	housekeeper := hk.New()
	registerTicks(housekeeper, bus, rep, wd)
	go housekeeper.Run()
	housekeeper.WaitStarted()
	defer housekeeper.Stop()

	announce(bus, selfAddr)
	_ = c

	<-ctx.Done()
}

func announce(bus *cncbus.Bus, selfAddr cncbus.Address) {
	msg := bus.MsgBeginUnchecked(selfAddr)
	if msg == nil {
		nlog.Warningf("cncbus: startup announcement dropped, bus heap exhausted")
		return
	}
	msg.WriteUnchecked([]byte("adkcored online"))
	if !bus.SendAsyncUnchecked(msg, selfAddr, selfAddr, selfAddr) {
		msg.Cancel()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()
	return ctx, cancel
}
