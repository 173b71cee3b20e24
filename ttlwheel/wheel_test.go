package ttlwheel

import (
	"testing"
	"time"
)

func TestWheel_InsertAndAdvanceExpires(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_000_000, 0)
	w := New(time.Second, time.Hour, now)

	w.Insert([]byte("session"), now.Add(2*time.Second))
	if !w.Contains([]byte("session")) {
		t.Fatalf("expected session to be scheduled")
	}

	expired := w.Advance(now.Add(1 * time.Second))
	if len(expired) != 0 {
		t.Fatalf("expected nothing expired yet, got %v", expired)
	}

	expired = w.Advance(now.Add(3 * time.Second))
	if len(expired) != 1 || expired[0] != "session" {
		t.Fatalf("expected session to expire, got %v", expired)
	}
	if w.Contains([]byte("session")) {
		t.Fatalf("expected session purged after expiry")
	}
}

func TestWheel_ReinsertReplacesExpiry(t *testing.T) {
	t.Parallel()
	now := time.Unix(2_000_000, 0)
	w := New(time.Second, time.Hour, now)

	w.Insert([]byte("k"), now.Add(1*time.Second))
	w.Insert([]byte("k"), now.Add(10*time.Second)) // idempotent replace

	expired := w.Advance(now.Add(2 * time.Second))
	if len(expired) != 0 {
		t.Fatalf("expected re-inserted key to survive the original deadline, got %v", expired)
	}
	expired = w.Advance(now.Add(11 * time.Second))
	if len(expired) != 1 || expired[0] != "k" {
		t.Fatalf("expected k to expire at the new deadline, got %v", expired)
	}
}

func TestWheel_RemoveIsIdempotent(t *testing.T) {
	t.Parallel()
	now := time.Unix(3_000_000, 0)
	w := New(time.Second, time.Hour, now)
	w.Insert([]byte("k"), now.Add(5*time.Second))
	w.Remove([]byte("k"))
	w.Remove([]byte("k")) // no panic, no-op
	if w.Contains([]byte("k")) {
		t.Fatalf("expected k removed")
	}
	if got := w.Advance(now.Add(10 * time.Second)); len(got) != 0 {
		t.Fatalf("expected no expired keys after removal, got %v", got)
	}
}

func TestWheel_FarFutureEntrySpillsToOverflowThenExpires(t *testing.T) {
	t.Parallel()
	now := time.Unix(4_000_000, 0)
	horizon := 10 * time.Second
	w := New(time.Second, horizon, now) // tiny horizon to force overflow

	w.Insert([]byte("far"), now.Add(time.Hour))
	if !w.Contains([]byte("far")) {
		t.Fatalf("expected far to be tracked (in overflow)")
	}
	// Advancing within the horizon should not expire it.
	if expired := w.Advance(now.Add(9 * time.Second)); len(expired) != 0 {
		t.Fatalf("expected far to remain pending, got %v", expired)
	}

	// Advance close to, then past, the real deadline; rehashing should move
	// it from overflow into a ring slot as it comes within the horizon.
	if expired := w.Advance(now.Add(59 * time.Minute)); len(expired) != 0 {
		t.Fatalf("expected far to still be pending at 59m, got %v", expired)
	}
	expired := w.Advance(now.Add(time.Hour + time.Second))
	if len(expired) != 1 || expired[0] != "far" {
		t.Fatalf("expected far to expire, got %v", expired)
	}
}

func TestWheel_Len(t *testing.T) {
	t.Parallel()
	now := time.Unix(5_000_000, 0)
	w := New(time.Second, time.Hour, now)
	w.Insert([]byte("a"), now.Add(time.Second))
	w.Insert([]byte("b"), now.Add(2*time.Second))
	if w.Len() != 2 {
		t.Fatalf("expected len 2, got %d", w.Len())
	}
}
