// Package hk provides a mechanism for registering cleanup/periodic
// functions that are invoked at specified intervals, used by this module
// to drive the watchdog tick, bus dispatch, and reporter tick cadences from
// a single background loop instead of one goroutine per subsystem.
// Grounded on this package's own pre-existing test entrypoint
// (housekeeper_suite_test.go), the only surviving trace of the teacher's
// hk package in the retrieved pack - its TestInit/DefaultHK/Run/WaitStarted
// surface is reproduced here and given a body.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package hk

import (
	"sync"
	"time"
)

// pollInterval bounds how promptly a newly-due request fires; it does not
// need to be shorter than the shortest registered interval, only a fair
// fraction of it.
const pollInterval = 20 * time.Millisecond

// request is one registered periodic callback. f returns the delay until
// it should fire again; returning zero (or negative) unregisters it.
type request struct {
	name string
	f    func() time.Duration
	due  time.Time
}

// Housekeeper runs registered requests on its own goroutine, each at its
// own cadence.
type Housekeeper struct {
	mu       sync.Mutex
	requests map[string]*request

	startOnce sync.Once
	started   chan struct{}
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// DefaultHK is the process-wide Housekeeper most callers register against,
// mirroring the original package's single global instance.
var DefaultHK = New()

// New returns a fresh, unstarted Housekeeper.
func New() *Housekeeper {
	return &Housekeeper{
		requests: make(map[string]*request),
		started:  make(chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

// TestInit replaces DefaultHK with a fresh instance, isolating one test's
// registrations from the next.
func TestInit() {
	DefaultHK = New()
}

// Reg registers f to fire after initial, and again after whatever delay
// its own return value specifies each time it runs. Registering under a
// name that's already registered replaces the existing entry.
func (hk *Housekeeper) Reg(name string, f func() time.Duration, initial time.Duration) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	hk.requests[name] = &request{name: name, f: f, due: time.Now().Add(initial)}
}

// Unreg removes a registered request. A no-op if name isn't registered.
func (hk *Housekeeper) Unreg(name string) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	delete(hk.requests, name)
}

// Run polls registered requests until Stop is called. Intended to be
// launched on its own goroutine; WaitStarted blocks until the loop has
// begun polling.
func (hk *Housekeeper) Run() {
	hk.startOnce.Do(func() { close(hk.started) })

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-hk.stopCh:
			return
		case now := <-ticker.C:
			hk.fireDue(now)
		}
	}
}

func (hk *Housekeeper) fireDue(now time.Time) {
	hk.mu.Lock()
	var due []*request
	for _, r := range hk.requests {
		if !now.Before(r.due) {
			due = append(due, r)
		}
	}
	hk.mu.Unlock()

	for _, r := range due {
		next := r.f()
		hk.mu.Lock()
		if _, ok := hk.requests[r.name]; !ok {
			hk.mu.Unlock()
			continue
		}
		if next <= 0 {
			delete(hk.requests, r.name)
		} else {
			r.due = time.Now().Add(next)
		}
		hk.mu.Unlock()
	}
}

// Stop signals Run to terminate. Safe to call more than once, and safe to
// call whether or not Run has ever been launched.
func (hk *Housekeeper) Stop() {
	hk.stopOnce.Do(func() { close(hk.stopCh) })
}

// WaitStarted blocks until hk.Run has begun polling.
func (hk *Housekeeper) WaitStarted() {
	<-hk.started
}

// WaitStarted blocks until DefaultHK.Run has begun polling.
func WaitStarted() {
	DefaultHK.WaitStarted()
}
