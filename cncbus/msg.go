package cncbus

import (
	"github.com/OneOfOne/xxhash"

	"github.com/nvstream/adk-core/cmn/debug"
)

// MsgHeader is delivered to a receiver alongside the message body.
type MsgHeader struct {
	Size         int
	TimeNanos    int64
	ReplyAddress Address
}

const msgInitialCap = 64

// Msg is an in-flight message body, backed by the owning Bus's heap.
// Lifecycle: MsgBegin, zero or more Write calls, then exactly one of
// Cancel (release without dispatch) or a SendAsync that hands it to the
// queue (the bus frees it after delivery).
type Msg struct {
	bus        *Bus
	buf        []byte
	len        int
	checksum   uint64
	replyAddr  Address
	canceled   bool
	dispatched bool
}

// MsgBeginUnchecked allocates a new message under memory pressure rules:
// returns nil instead of blocking or panicking when the bus heap is full.
func (b *Bus) MsgBeginUnchecked(replyAddr Address) *Msg {
	buf, err := b.heap.Alloc(msgInitialCap, "cncbus.msg")
	if err != nil {
		return nil
	}
	return &Msg{bus: b, buf: buf, replyAddr: replyAddr}
}

// MsgBegin is MsgBeginUnchecked but traps in debug builds on allocation
// failure rather than returning nil.
func (b *Bus) MsgBegin(replyAddr Address) *Msg {
	m := b.MsgBeginUnchecked(replyAddr)
	debug.Assert(m != nil, "cncbus: msg_begin out of memory")
	return m
}

// WriteUnchecked appends p to the message body, growing the backing
// allocation (doubling) as needed. Returns false - without touching the
// message - if the bus heap cannot satisfy the growth.
func (m *Msg) WriteUnchecked(p []byte) bool {
	if m.canceled || len(p) == 0 {
		return !m.canceled
	}
	need := m.len + len(p)
	if need > len(m.buf) {
		newCap := len(m.buf) * 2
		if newCap < need {
			newCap = need
		}
		grown, err := m.bus.heap.Realloc(m.buf, newCap, "cncbus.msg")
		if err != nil {
			return false
		}
		m.buf = grown
	}
	copy(m.buf[m.len:need], p)
	m.len = need
	return true
}

// Write is WriteUnchecked but traps in debug builds on failure.
func (m *Msg) Write(p []byte) {
	debug.Assert(m.WriteUnchecked(p), "cncbus: msg_write out of memory")
}

// Cancel releases the message's backing memory without ever dispatching
// it - the bus's equivalent of "release without dispatch" (§5).
func (m *Msg) Cancel() {
	if m.canceled || m.dispatched {
		return
	}
	m.canceled = true
	m.bus.heap.Free(m.buf)
	m.buf = nil
}

// Size returns the number of bytes written to the message so far.
func (m *Msg) Size() int { return m.len }

// Bytes returns the message body written so far.
func (m *Msg) Bytes() []byte { return m.buf[:m.len] }

func (m *Msg) stampChecksum() {
	if debug.ON() {
		m.checksum = xxhash.Checksum64S(m.Bytes(), 0)
	}
}

// verifyChecksum re-hashes the body and traps in debug builds if it
// diverges from the value stamped at send_async time - a cheap guard
// against one message's bytes being corrupted by an unrelated allocation
// between send and dispatch (§8 "CRC-based fuzz test").
func (m *Msg) verifyChecksum() {
	if !debug.ON() {
		return
	}
	debug.Assert(xxhash.Checksum64S(m.Bytes(), 0) == m.checksum, "cncbus: message body corrupted between send and dispatch")
}
