package report

import "testing"

func eventWithIndex(i int) *sentryEvent {
	return &sentryEvent{EventID: string(rune('a' + i))}
}

func TestEnqueuePastCapacityEvictsOldest(t *testing.T) {
	q := newSendQueue(3)
	for i := 0; i < 6; i++ {
		q.enqueue(eventWithIndex(i))
	}
	if got := q.length(); got != 3 {
		t.Fatalf("length = %d, want 3", got)
	}
	items := q.flush(flushDisregardPause)
	if len(items) != 3 {
		t.Fatalf("flushed %d items, want 3", len(items))
	}
	// the surviving three should be the last three enqueued: indices 3,4,5
	for i, item := range items {
		want := eventWithIndex(i + 3).EventID
		if item.EventID != want {
			t.Errorf("item %d = %q, want %q", i, item.EventID, want)
		}
	}
}

func TestFlushDrainsAndEmptiesQueue(t *testing.T) {
	q := newSendQueue(32)
	for i := 0; i < 5; i++ {
		q.enqueue(eventWithIndex(i))
	}
	if q.isEmpty() {
		t.Fatal("expected non-empty queue before flush")
	}
	items := q.flush(flushDisregardPause)
	if len(items) != 5 {
		t.Fatalf("flushed %d, want 5", len(items))
	}
	if !q.isEmpty() {
		t.Fatal("expected empty queue after flush")
	}
}

func TestPauseExtendsButNeverShortens(t *testing.T) {
	q := newSendQueue(4)
	now := int64(1000)
	q.now = func() int64 { return now }

	q.pause(10) // pauseUntil = 1010
	if q.pauseUntilEpoch != 1010 {
		t.Fatalf("pauseUntilEpoch = %d, want 1010", q.pauseUntilEpoch)
	}

	q.pause(2) // shorter delay must not shorten the existing pause
	if q.pauseUntilEpoch != 1010 {
		t.Fatalf("pauseUntilEpoch after shorter pause = %d, want unchanged 1010", q.pauseUntilEpoch)
	}

	q.pause(50) // longer delay extends it
	if q.pauseUntilEpoch != 1050 {
		t.Fatalf("pauseUntilEpoch after longer pause = %d, want 1050", q.pauseUntilEpoch)
	}
}

func TestFlushRegardPauseWithholdsUntilElapsed(t *testing.T) {
	q := newSendQueue(4)
	now := int64(1000)
	q.now = func() int64 { return now }
	q.enqueue(eventWithIndex(0))
	q.pause(10)

	if items := q.flush(flushRegardPause); items != nil {
		t.Fatalf("expected withheld flush to return nil, got %d items", len(items))
	}
	if q.isEmpty() {
		t.Fatal("withheld flush must not drain the queue")
	}

	now = 1011
	items := q.flush(flushRegardPause)
	if len(items) != 1 {
		t.Fatalf("flushed %d items after pause elapsed, want 1", len(items))
	}
}
