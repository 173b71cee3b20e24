package tinylfu

// Outcome is the result of an admission decision (spec §4.3).
type Outcome int

const (
	// Insert admits the candidate with no eviction.
	Insert Outcome = iota
	// InsertWithEviction admits the candidate and names a victim that the
	// caller (the shard store) must remove from its own map/byte-accounting.
	InsertWithEviction
	// Reject refuses the candidate; the store must leave its prior state
	// untouched.
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Insert:
		return "Insert"
	case InsertWithEviction:
		return "InsertWithEviction"
	case Reject:
		return "Reject"
	default:
		return "Unknown"
	}
}

// Policy is one shard's TinyLFU admission + eviction state: one sketch, one
// Window-LRU and one Main-LRU (spec §4.3). It is not safe for concurrent
// use — callers serialize access the same way the teacher's shard serializes
// access to its policy.ShardPolicy under the shard lock.
type Policy struct {
	sketch *Sketch

	window, main       *orderedSet
	windowCap, mainCap int

	admissionMultiplier float64

	// Sample-counter aging (spec §4.1): the sketch is halved once the number
	// of increments since the last reset reaches resetThreshold, 10x the
	// total (window + main) capacity.
	sampleSize     uint64
	resetThreshold uint64
}

// New constructs a per-shard TinyLFU policy. windowCap and mainCap are
// entry-count capacities (windowCap + mainCap == c in spec notation).
func New(sketchWidth, sketchDepth, windowCap, mainCap int, admissionMultiplier float64) *Policy {
	if windowCap <= 0 || mainCap <= 0 {
		panic("tinylfu: windowCap and mainCap must be > 0")
	}
	capacity := windowCap + mainCap
	return &Policy{
		sketch:              NewSketch(sketchWidth, sketchDepth),
		window:              newOrderedSet(),
		main:                newOrderedSet(),
		windowCap:           windowCap,
		mainCap:             mainCap,
		admissionMultiplier: admissionMultiplier,
		resetThreshold:      uint64(capacity) * 10,
	}
}

// Capacity returns windowCap + mainCap.
func (p *Policy) Capacity() int { return p.windowCap + p.mainCap }

// Population returns the number of keys currently tracked across both LRUs.
func (p *Policy) Population() int { return p.window.len() + p.main.len() }

// RecordAccess increments the frequency sketch for key and, if the key is
// already resident in either LRU, promotes it to MRU of its owning list
// (spec §4.3 record_access).
func (p *Policy) RecordAccess(key []byte) {
	p.bumpSketch(key)
	ks := string(key)
	if p.window.contains(ks) {
		p.window.touch(ks)
		return
	}
	if p.main.contains(ks) {
		p.main.touch(ks)
	}
}

func (p *Policy) bumpSketch(key []byte) {
	p.sketch.Increment(key)
	p.sampleSize++
	if p.sampleSize >= p.resetThreshold {
		p.sketch.Reset()
		p.sampleSize = 0
	}
}

// Admit decides whether candidate should be stored, following spec §4.3's
// three-step procedure. The returned victim (when ok is true) must be
// deleted by the caller from its own key->entry map and byte accounting;
// Admit itself only tracks window/main membership.
func (p *Policy) Admit(candidate []byte) (outcome Outcome, victim []byte, ok bool) {
	p.bumpSketch(candidate)
	cs := string(candidate)

	if p.Population() < p.Capacity() {
		return p.admitUnderCapacity(cs)
	}
	if p.window.contains(cs) {
		p.window.touch(cs)
		return Insert, nil, false
	}
	if p.main.contains(cs) {
		p.main.touch(cs)
		return Insert, nil, false
	}
	return p.admitAtCapacity(cs)
}

// admitUnderCapacity implements step 1: population < capacity.
func (p *Policy) admitUnderCapacity(candidate string) (Outcome, []byte, bool) {
	if p.window.len() < p.windowCap {
		p.window.pushFront(candidate)
		return Insert, nil, false
	}

	// Window is full even though total population isn't: cascade its tail
	// into Main, possibly evicting Main's own tail via the same comparison
	// step 3 uses, then admit the candidate into Window.
	wtail, _ := p.window.evictTail()
	outcome, victim, evicted := p.promoteIntoMain(wtail)
	p.window.pushFront(candidate)
	if evicted {
		return InsertWithEviction, victim, true
	}
	return outcome, nil, false
}

// admitAtCapacity implements step 3: Main is at capacity and candidate is a
// brand-new key (step 2's "already resident" case has been ruled out by the
// caller).
func (p *Policy) admitAtCapacity(candidate string) (Outcome, []byte, bool) {
	victimKey, ok := p.main.tail()
	if !ok {
		// Main is empty (mainCap==0 in practice can't happen; defensive).
		p.window.pushFront(candidate)
		return Insert, nil, false
	}
	candEst := p.sketch.Estimate([]byte(candidate))
	victEst := p.sketch.Estimate([]byte(victimKey))
	threshold := float64(victEst) * p.admissionMultiplier
	if float64(candEst) < threshold {
		return Reject, nil, false
	}

	p.main.remove(victimKey)
	p.window.pushFront(candidate)
	// Room now exists in Main; push Window's tail in unconditionally.
	if wtail, ok := p.window.evictTail(); ok {
		p.main.pushFront(wtail)
	}
	return InsertWithEviction, []byte(victimKey), true
}

// promoteIntoMain pushes key into Main, evicting Main's own tail first if
// Main is already at capacity and loses the frequency comparison. Returns
// whether an eviction happened and, if so, the evicted key (which may be
// key itself, when it loses to Main's resident tail and is dropped rather
// than promoted).
func (p *Policy) promoteIntoMain(key string) (Outcome, []byte, bool) {
	if p.main.len() < p.mainCap {
		p.main.pushFront(key)
		return Insert, nil, false
	}
	mtail, ok := p.main.tail()
	if !ok {
		p.main.pushFront(key)
		return Insert, nil, false
	}
	keyEst := p.sketch.Estimate([]byte(key))
	mtailEst := p.sketch.Estimate([]byte(mtail))
	if float64(keyEst) >= float64(mtailEst)*p.admissionMultiplier {
		p.main.remove(mtail)
		p.main.pushFront(key)
		return InsertWithEviction, []byte(mtail), true
	}
	// key loses to the resident Main tail; it is dropped entirely.
	return InsertWithEviction, []byte(key), true
}

// Remove untracks key from whichever LRU holds it. It is a no-op if key is
// tracked in neither — policies may be consulted for keys that were never
// admitted (e.g. a disabled or not-yet-touched policy), matching the
// invariant that store presence does not imply policy presence.
func (p *Policy) Remove(key []byte) {
	ks := string(key)
	p.window.remove(ks)
	p.main.remove(ks)
}

// Contains reports whether key is tracked in either LRU.
func (p *Policy) Contains(key []byte) bool {
	ks := string(key)
	return p.window.contains(ks) || p.main.contains(ks)
}

// EvictVictim unconditionally pops one tail key for Batch-mode eviction
// (spec §4.3 Batch strategy): Main's tail is preferred since those entries
// have already survived one admission comparison; Window is drained only
// once Main is empty.
func (p *Policy) EvictVictim() ([]byte, bool) {
	if k, ok := p.main.evictTail(); ok {
		return []byte(k), true
	}
	if k, ok := p.window.evictTail(); ok {
		return []byte(k), true
	}
	return nil, false
}
