package events

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNextTimestampAdvancesPastLast(t *testing.T) {
	t.Cleanup(func() {
		atomic.StoreInt64(&lastTimestamp, 0)
	})

	base := time.Now().Add(time.Second).UnixNano()
	atomic.StoreInt64(&lastTimestamp, base)

	if got := nextTimestamp(); got != base+1 {
		t.Fatalf("expected %d, got %d", base+1, got)
	}
	if got := nextTimestamp(); got != base+2 {
		t.Fatalf("expected %d, got %d", base+2, got)
	}
}

func TestNextTimestampStrictlyIncreasing(t *testing.T) {
	t.Cleanup(func() {
		atomic.StoreInt64(&lastTimestamp, 0)
	})
	atomic.StoreInt64(&lastTimestamp, 0)

	prev := nextTimestamp()
	for i := 0; i < 100; i++ {
		next := nextTimestamp()
		if next <= prev {
			t.Fatalf("timestamp did not increase: %d then %d", prev, next)
		}
		prev = next
	}
}
