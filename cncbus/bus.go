package cncbus

import (
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/nvstream/adk-core/cmn/debug"
	"github.com/nvstream/adk-core/cmn/nlog"
	"github.com/nvstream/adk-core/memsys/heap"
)

// MaxReceivers bounds how many distinct addresses may be connected to a
// single bus at once (cncbus_max_receivers in the original fixture).
const MaxReceivers = 256

// Receiver is anything that can be connected to a bus address. Dispatch
// delivers one message at a time to a given receiver and never dispatches
// concurrently to the same receiver - callers may rely on that for
// lock-free per-receiver state.
type Receiver interface {
	Address() Address
	OnMessage(hdr MsgHeader, body []byte)
}

// DispatchMode selects how much of the pending queue Dispatch drains.
type DispatchMode int

const (
	// DispatchFlush drains the entire queue before returning.
	DispatchFlush DispatchMode = iota
	// DispatchSingleMessage delivers at most one message per call.
	DispatchSingleMessage
)

// DispatchResult reports whether Dispatch found anything to do.
type DispatchResult int

const (
	DispatchOK DispatchResult = iota
	DispatchNoMessages
)

type queuedMsg struct {
	msg        *Msg
	srcAddr    Address
	destAddr   Address
	subnetMask Address
}

// Bus is an in-process, address-routed message bus. A single Bus is safe
// for concurrent use by any number of producer and dispatcher goroutines;
// Dispatch serializes delivery through an internal lock, so a connected
// Receiver is never dispatched to from more than one goroutine at a time.
type Bus struct {
	heap *heap.Heap

	mu        sync.RWMutex
	receivers map[Address]Receiver
	filter    *cuckoo.Filter

	queueMu sync.Mutex
	queue   []*queuedMsg

	dispatchMu sync.Mutex
}

// New creates a bus backed by the given heap, which owns every message
// body allocated through MsgBegin/MsgBeginUnchecked until it is freed by
// Cancel or by a completed Dispatch.
func New(h *heap.Heap) *Bus {
	return &Bus{
		heap:      h,
		receivers: make(map[Address]Receiver, MaxReceivers),
		filter:    cuckoo.NewFilter(MaxReceivers),
	}
}

// Connect registers r under its own Address. Connecting an address that
// is already connected replaces the prior receiver. Connecting a new
// address while MaxReceivers addresses are connected is refused and logged.
func (b *Bus) Connect(r Receiver) {
	addr := r.Address()
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.receivers[addr]; !exists {
		if len(b.receivers) >= MaxReceivers {
			nlog.Errorf("cncbus: receiver table full (%d), refusing %s", MaxReceivers, addr)
			return
		}
		ab := addr.bytes()
		b.filter.InsertUnique(ab[:])
	}
	b.receivers[addr] = r
}

// Disconnect removes whatever receiver is registered at addr, if any.
func (b *Bus) Disconnect(addr Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.receivers[addr]; !exists {
		return
	}
	delete(b.receivers, addr)
	ab := addr.bytes()
	b.filter.Delete(ab[:])
}

// SendAsyncUnchecked enqueues msg for later delivery and returns
// immediately; dispatch order among messages sent from a single producer
// against a single dispatcher is preserved, but no ordering is guaranteed
// across producers. Returns false - and leaves msg owned by the caller -
// if msg is nil, already canceled, or already sent.
func (b *Bus) SendAsyncUnchecked(msg *Msg, srcAddr, destAddr, subnetMask Address) bool {
	if msg == nil || msg.canceled || msg.dispatched {
		return false
	}
	msg.stampChecksum()
	msg.dispatched = true

	b.queueMu.Lock()
	b.queue = append(b.queue, &queuedMsg{msg: msg, srcAddr: srcAddr, destAddr: destAddr, subnetMask: subnetMask})
	b.queueMu.Unlock()
	return true
}

// SendAsync is SendAsyncUnchecked but traps in debug builds on failure.
func (b *Bus) SendAsync(msg *Msg, srcAddr, destAddr, subnetMask Address) {
	debug.Assert(b.SendAsyncUnchecked(msg, srcAddr, destAddr, subnetMask), "cncbus: send_async failed")
}

func (b *Bus) pop() (*queuedMsg, bool) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	qm := b.queue[0]
	b.queue = b.queue[1:]
	return qm, true
}

// Dispatch delivers queued messages to matching connected receivers.
// The bus serializes delivery globally via an internal lock, so two
// goroutines calling Dispatch concurrently on the same Bus never race on a
// Receiver's OnMessage, but they do contend on that same lock - Dispatch
// is not meant to be called from many goroutines at once for throughput.
func (b *Bus) Dispatch(mode DispatchMode) DispatchResult {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	delivered := false
	for {
		qm, ok := b.pop()
		if !ok {
			break
		}
		b.deliver(qm)
		delivered = true
		if mode == DispatchSingleMessage {
			break
		}
	}
	if !delivered {
		return DispatchNoMessages
	}
	return DispatchOK
}

func (b *Bus) deliver(qm *queuedMsg) {
	defer b.heap.Free(qm.msg.buf)
	qm.msg.verifyChecksum()

	if qm.subnetMask == BroadcastSubnet {
		ab := qm.destAddr.bytes()
		if !b.filter.Lookup(ab[:]) {
			return
		}
	}

	hdr := MsgHeader{Size: qm.msg.Size(), ReplyAddress: qm.msg.replyAddr}
	body := qm.msg.Bytes()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for addr, r := range b.receivers {
		if addr.Matches(qm.destAddr, qm.subnetMask) {
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						nlog.Errorf("cncbus: receiver %s panicked handling message from %s: %v", addr, qm.srcAddr, rec)
					}
				}()
				r.OnMessage(hdr, body)
			}()
		}
	}
}

// NumQueued reports how many messages are currently waiting for dispatch.
func (b *Bus) NumQueued() int {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return len(b.queue)
}

// NumReceivers reports how many addresses are currently connected.
func (b *Bus) NumReceivers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.receivers)
}
