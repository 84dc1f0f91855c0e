// Package watchdog monitors a single "main thread" heartbeat (§4.6): a
// background goroutine expects Tick to be called periodically and trips a
// warning, then a fatal trap, when it isn't. Grounded on
// _examples/original_source/source/adk/app_thunk/watchdog.c/.h.
package watchdog

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/nvstream/adk-core/cmn/nlog"
)

// tickFlag values, matching watchdog_tick_set/watchdog_tick_cleared. Zero
// value is "set" so a freshly started watchdog isn't immediately
// considered unresponsive.
const (
	tickSet     int32 = 0
	tickCleared int32 = 1
)

// OnFatal is invoked once the fatal delay elapses without a Tick. The
// zero value panics; tests substitute a recording callback to observe
// the trip without crashing the test binary, the same role
// watchdog_tests.c's mocked assert-failed hook plays.
type OnFatal func(message string)

// Watchdog runs a polling loop on its own goroutine and traps if Tick
// isn't called within FatalDelay of the last call (or of Start).
type Watchdog struct {
	// SuspendThreshold is the maximum gap between successive polls that's
	// still counted as elapsed time; a longer gap is assumed to be the
	// process itself being suspended (e.g. device sleep) and is excluded,
	// so resuming from suspend doesn't trigger a spurious trap.
	SuspendThreshold time.Duration
	WarningDelay     time.Duration
	FatalDelay       time.Duration
	// OnFatal overrides the default panic on trip. May be nil.
	OnFatal OnFatal

	tickFlag atomic.Int32
	running  atomic.Bool
	done     chan struct{}
}

// New builds a Watchdog. It panics if warningDelay or fatalDelay is zero,
// or if fatalDelay doesn't exceed warningDelay - the same invariants
// watchdog_start asserts.
func New(suspendThreshold, warningDelay, fatalDelay time.Duration) *Watchdog {
	if warningDelay <= 0 {
		panic("watchdog: warningDelay must be > 0")
	}
	if fatalDelay <= warningDelay {
		panic("watchdog: fatalDelay must be greater than warningDelay")
	}
	return &Watchdog{
		SuspendThreshold: suspendThreshold,
		WarningDelay:     warningDelay,
		FatalDelay:       fatalDelay,
	}
}

// Tick resets the unresponsiveness timer. Safe to call from any
// goroutine; the monitor loop only ever reads the flag at poll time.
func (w *Watchdog) Tick() {
	w.tickFlag.Store(tickSet)
}

// Start launches the monitor loop. Calling Start on an already-running
// Watchdog is a no-op.
func (w *Watchdog) Start() {
	if w.running.Swap(true) {
		return
	}
	w.done = make(chan struct{})
	go w.run()
}

// Shutdown stops the monitor loop and waits for it to exit. Safe to call
// on a Watchdog that was never started.
func (w *Watchdog) Shutdown() {
	if !w.running.Swap(false) {
		return
	}
	nlog.Infof("watchdog: terminating watchdog thread")
	<-w.done
}

func (w *Watchdog) run() {
	// The original requests a high-priority OS thread for this loop;
	// Go has no portable equivalent, so this pins the loop to its own OS
	// thread instead, keeping the scheduler from migrating (and briefly
	// stalling) the one goroutine responsible for noticing unresponsiveness.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	lastTick := time.Now()
	var timeSinceLastTick time.Duration
	warnReported := false

	for w.running.Load() {
		now := time.Now()
		if dt := now.Sub(lastTick); dt <= w.SuspendThreshold {
			timeSinceLastTick += dt
		}
		lastTick = now

		if w.tickFlag.Load() == tickSet {
			w.tickFlag.Store(tickCleared)
			timeSinceLastTick = 0
			warnReported = false
		}

		switch {
		case timeSinceLastTick >= w.FatalDelay:
			w.trap()
		case timeSinceLastTick >= w.WarningDelay:
			if !warnReported {
				nlog.Warningf("watchdog: main thread is unresponsive for %s", w.WarningDelay)
				warnReported = true
			}
		}

		time.Sleep(time.Millisecond)
	}
}

func (w *Watchdog) trap() {
	msg := fmt.Sprintf("watchdog: main thread didn't respond within %s", w.FatalDelay)
	if w.OnFatal != nil {
		w.OnFatal(msg)
		return
	}
	panic(msg)
}
