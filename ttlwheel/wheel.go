// Package ttlwheel implements the hashed timer wheel used for per-shard TTL
// expiry (spec §3, §4.6): O(1) scheduling, a lazy+active expiry sweep, and a
// spill bucket for entries whose expiry lies beyond the wheel's horizon.
//
// Wheel is not safe for concurrent use on its own; like the teacher's
// intrusive shard list, callers serialize access externally (store.Shard
// holds the lock that also guards its Wheel).
package ttlwheel

import "time"

// Wheel is an array of slots indexed by floor(expiry/slotWidth). Slots
// beyond the ring's horizon spill into an overflow bucket that is rehashed
// into the ring as the wheel's cursor advances toward them.
type Wheel struct {
	slotWidthSeconds int64
	numSlots         int64

	slots    []map[string]int64 // ring index -> key -> absolute expiry (unix seconds)
	location map[string]int64   // key -> absolute slot number currently holding it, or -1 for overflow
	overflow map[string]int64   // key -> absolute expiry, for entries beyond the horizon

	cursor int64 // next unprocessed absolute slot number
}

// New builds a Wheel with the given slot width and horizon (ring size =
// horizon/slotWidth, minimum 1). now anchors the cursor to the slot
// containing the current time.
func New(slotWidth, horizon time.Duration, now time.Time) *Wheel {
	sw := int64(slotWidth / time.Second)
	if sw < 1 {
		sw = 1
	}
	n := int64(horizon / slotWidth)
	if n < 1 {
		n = 1
	}
	slots := make([]map[string]int64, n)
	for i := range slots {
		slots[i] = make(map[string]int64)
	}
	return &Wheel{
		slotWidthSeconds: sw,
		numSlots:         n,
		slots:            slots,
		location:         make(map[string]int64),
		overflow:         make(map[string]int64),
		cursor:           now.Unix() / sw,
	}
}

func (w *Wheel) slotOf(t time.Time) int64 { return t.Unix() / w.slotWidthSeconds }

// Insert places key in the slot for expiry, replacing any prior scheduling
// for key (idempotent re-insertion per spec §3/§4.6).
func (w *Wheel) Insert(key []byte, expiry time.Time) {
	ks := string(key)
	w.remove(ks)

	slotAbs := w.slotOf(expiry)
	if slotAbs < w.cursor {
		slotAbs = w.cursor // already due; picked up on the next Advance
	}
	expUnix := expiry.Unix()

	if slotAbs-w.cursor < w.numSlots {
		idx := slotAbs % w.numSlots
		w.slots[idx][ks] = expUnix
		w.location[ks] = slotAbs
	} else {
		w.overflow[ks] = expUnix
		w.location[ks] = -1
	}
}

// Remove purges key from the wheel; no-op if key was never inserted or has
// already been consumed by Advance. Lazy purge is acceptable per spec §3.
func (w *Wheel) Remove(key []byte) { w.remove(string(key)) }

func (w *Wheel) remove(ks string) {
	slotAbs, ok := w.location[ks]
	if !ok {
		return
	}
	if slotAbs == -1 {
		delete(w.overflow, ks)
	} else {
		delete(w.slots[slotAbs%w.numSlots], ks)
	}
	delete(w.location, ks)
}

// Contains reports whether key currently has a scheduled expiry.
func (w *Wheel) Contains(key []byte) bool {
	_, ok := w.location[string(key)]
	return ok
}

// Advance sweeps every slot due at or before now, returning the keys whose
// absolute expiry has actually passed (a slot may hold keys whose expiry,
// within the same slot width, is slightly after `now`). It also rehashes
// overflow entries that have come within the horizon. Callers drive this
// both actively (a periodic background tick) and passively (opportunistically
// on normal operations), per spec §4.6.
func (w *Wheel) Advance(now time.Time) []string {
	nowSlot := w.slotOf(now)
	nowUnix := now.Unix()

	var expired []string
	// Overflow entries whose expiry has already passed are due now, even when
	// the sweep below jumps over the ring slot they would have been moved to.
	for k, exp := range w.overflow {
		if exp <= nowUnix {
			expired = append(expired, k)
			delete(w.overflow, k)
			delete(w.location, k)
		}
	}
	for w.cursor <= nowSlot {
		idx := w.cursor % w.numSlots
		bucket := w.slots[idx]
		for k, exp := range bucket {
			if exp <= nowUnix {
				expired = append(expired, k)
				delete(bucket, k)
				delete(w.location, k)
			}
		}
		w.cursor++
	}
	w.rehashOverflow()
	return expired
}

// rehashOverflow moves overflow entries that have come within the ring's
// horizon into their proper slot.
func (w *Wheel) rehashOverflow() {
	if len(w.overflow) == 0 {
		return
	}
	for k, exp := range w.overflow {
		slotAbs := exp / w.slotWidthSeconds
		if slotAbs-w.cursor < w.numSlots {
			delete(w.overflow, k)
			if slotAbs < w.cursor {
				slotAbs = w.cursor // slot already swept; picked up on the next Advance
			}
			idx := slotAbs % w.numSlots
			if idx < 0 {
				idx = 0
			}
			w.slots[idx][k] = exp
			w.location[k] = slotAbs
		}
	}
}

// Len returns the total number of keys currently scheduled (ring + overflow).
func (w *Wheel) Len() int { return len(w.location) }
