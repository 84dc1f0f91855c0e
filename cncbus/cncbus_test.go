package cncbus

import (
	"sync"
	"testing"

	"github.com/nvstream/adk-core/memsys/heap"
)

type recordingReceiver struct {
	addr Address
	mu   sync.Mutex
	got  [][]byte
}

func (r *recordingReceiver) Address() Address { return r.addr }

func (r *recordingReceiver) OnMessage(_ MsgHeader, body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := append([]byte(nil), body...)
	r.got = append(r.got, cp)
}

func (r *recordingReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	h := heap.New(make([]byte, 1<<16), 16, "cncbus-test")
	return New(h)
}

func TestSendWithNoReceiversIsANoop(t *testing.T) {
	b := newTestBus(t)
	addr := MakeAddress(10, 10, 1, 1)

	msg := b.MsgBeginUnchecked(InvalidAddress)
	if msg == nil {
		t.Fatal("MsgBeginUnchecked returned nil")
	}
	msg.Write([]byte("hello"))
	b.SendAsync(msg, InvalidAddress, addr, BroadcastSubnet)

	if got := b.Dispatch(DispatchFlush); got != DispatchOK {
		t.Fatalf("Dispatch = %v, want DispatchOK (message should still be consumed)", got)
	}
	if b.NumQueued() != 0 {
		t.Fatalf("expected queue drained, got %d pending", b.NumQueued())
	}
}

func TestDispatchWithEmptyQueueReportsNoMessages(t *testing.T) {
	b := newTestBus(t)
	if got := b.Dispatch(DispatchFlush); got != DispatchNoMessages {
		t.Fatalf("Dispatch on empty queue = %v, want DispatchNoMessages", got)
	}
}

func TestConnectDisconnectRouting(t *testing.T) {
	b := newTestBus(t)
	addr := MakeAddress(10, 10, 1, 1)
	r := &recordingReceiver{addr: addr}
	b.Connect(r)

	msg := b.MsgBeginUnchecked(InvalidAddress)
	msg.Write([]byte("payload"))
	b.SendAsync(msg, InvalidAddress, addr, BroadcastSubnet)
	b.Dispatch(DispatchFlush)

	if r.count() != 1 {
		t.Fatalf("expected receiver to get 1 message, got %d", r.count())
	}

	b.Disconnect(addr)
	msg2 := b.MsgBeginUnchecked(InvalidAddress)
	msg2.Write([]byte("after disconnect"))
	b.SendAsync(msg2, InvalidAddress, addr, BroadcastSubnet)
	b.Dispatch(DispatchFlush)

	if r.count() != 1 {
		t.Fatalf("expected no delivery after disconnect, got %d total", r.count())
	}
}

func TestSubnetBroadcastReachesAllMatchingReceivers(t *testing.T) {
	b := newTestBus(t)
	subnet := MakeAddress(255, 255, 255, 0)
	base := MakeAddress(10, 10, 1, 0)

	receivers := make([]*recordingReceiver, 4)
	for i := range receivers {
		r := &recordingReceiver{addr: MakeAddress(10, 10, 1, byte(i + 1))}
		receivers[i] = r
		b.Connect(r)
	}

	msg := b.MsgBeginUnchecked(InvalidAddress)
	msg.Write([]byte("broadcast"))
	b.SendAsync(msg, InvalidAddress, base, subnet)
	b.Dispatch(DispatchFlush)

	for i, r := range receivers {
		if r.count() != 1 {
			t.Fatalf("receiver %d got %d messages, want 1", i, r.count())
		}
	}
}

func TestDispatchSingleMessageDrainsOneAtATime(t *testing.T) {
	b := newTestBus(t)
	addr := MakeAddress(10, 10, 1, 1)
	r := &recordingReceiver{addr: addr}
	b.Connect(r)

	for i := 0; i < 3; i++ {
		msg := b.MsgBeginUnchecked(InvalidAddress)
		msg.Write([]byte{byte(i)})
		b.SendAsync(msg, InvalidAddress, addr, BroadcastSubnet)
	}

	for i := 0; i < 3; i++ {
		if got := b.Dispatch(DispatchSingleMessage); got != DispatchOK {
			t.Fatalf("iteration %d: Dispatch = %v, want DispatchOK", i, got)
		}
	}
	if got := b.Dispatch(DispatchSingleMessage); got != DispatchNoMessages {
		t.Fatalf("Dispatch after drain = %v, want DispatchNoMessages", got)
	}
	if r.count() != 3 {
		t.Fatalf("receiver got %d messages, want 3", r.count())
	}
}

func TestConcurrentSendAndDispatchConservesMessages(t *testing.T) {
	b := newTestBus(t)
	addr := MakeAddress(10, 10, 1, 1)
	r := &recordingReceiver{addr: addr}
	b.Connect(r)

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				msg := b.MsgBeginUnchecked(InvalidAddress)
				if msg == nil {
					continue
				}
				msg.Write([]byte{byte(i)})
				b.SendAsync(msg, InvalidAddress, addr, BroadcastSubnet)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				b.Dispatch(DispatchFlush)
				return
			default:
				b.Dispatch(DispatchFlush)
			}
		}
	}()

	wg.Wait()
	close(done)

	for b.NumQueued() > 0 {
		b.Dispatch(DispatchFlush)
	}

	if want := producers * perProducer; r.count() != want {
		t.Fatalf("receiver got %d messages, want %d", r.count(), want)
	}
}

func TestCancelReleasesWithoutDispatch(t *testing.T) {
	b := newTestBus(t)
	addr := MakeAddress(10, 10, 1, 1)
	r := &recordingReceiver{addr: addr}
	b.Connect(r)

	msg := b.MsgBeginUnchecked(InvalidAddress)
	msg.Write([]byte("never sent"))
	msg.Cancel()

	if b.NumQueued() != 0 {
		t.Fatalf("expected cancel to avoid the queue, got %d pending", b.NumQueued())
	}
	b.Dispatch(DispatchFlush)
	if r.count() != 0 {
		t.Fatalf("expected 0 deliveries for a canceled message, got %d", r.count())
	}
}
