package store

import (
	"sync"
	"time"

	"github.com/RogerFelipeNsk/crabcache/config"
	"github.com/RogerFelipeNsk/crabcache/tinylfu"
	"github.com/RogerFelipeNsk/crabcache/ttlwheel"
	"github.com/RogerFelipeNsk/crabcache/wal"
)

// PutOutcome is the result of Shard.Put (spec §4.5).
type PutOutcome int

const (
	Inserted PutOutcome = iota
	Updated
	Rejected
)

func (o PutOutcome) String() string {
	switch o {
	case Inserted:
		return "Inserted"
	case Updated:
		return "Updated"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// ShardStats is the per-shard snapshot named in spec §4.5.
type ShardStats struct {
	KeyCount    int
	BytesUsed   int64
	BytesLimit  int64
	Hits        uint64
	Misses      uint64
	Admissions  uint64
	Rejections  uint64
	Evictions   uint64
	Expirations uint64
}

// Shard is one horizontal partition of the key space (spec §3 "Shard"): a
// key->entry map, a TTL wheel, a byte-usage counter against a byte budget,
// and a TinyLFU policy instance. Every field is guarded by mu; the teacher
// takes the same single-lock-per-shard approach in cache.shard.
type Shard struct {
	id  uint32
	cfg config.Config

	mu       sync.Mutex
	entries  map[string]*Entry
	wheel    *ttlwheel.Wheel
	policy   *tinylfu.Policy
	pressure *tinylfu.PressureMonitor

	walWriter *wal.Writer // nil when WAL disabled

	hits, misses           uint64
	admissions, rejections uint64
	evictions, expirations uint64
}

// NewShard builds an empty shard. walWriter may be nil (WAL disabled).
func NewShard(id uint32, cfg config.Config, walWriter *wal.Writer, now time.Time) *Shard {
	capacity := cfg.Capacity()
	windowCap := cfg.WindowCapacity(capacity)
	mainCap := cfg.MainCapacity(capacity)
	return &Shard{
		id:        id,
		cfg:       cfg,
		entries:   make(map[string]*Entry, capacity),
		wheel:     ttlwheel.New(cfg.SlotWidth, cfg.Horizon, now),
		policy:    tinylfu.New(cfg.SketchWidth, cfg.SketchDepth, windowCap, mainCap, cfg.AdmissionMultiplier),
		pressure:  tinylfu.NewPressureMonitor(cfg.BytesPerShard, cfg.HighWatermark, cfg.LowWatermark),
		walWriter: walWriter,
	}
}

// Put inserts or updates key (spec §4.5). now is threaded through for
// deterministic tests rather than read from time.Now() on every call.
func (s *Shard) Put(key, value []byte, ttl time.Duration, now time.Time) (PutOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepExpiredLocked(now)

	ks := string(key)
	newCost := entryCost(key, value)
	existing, exists := s.entries[ks]

	if exists {
		oldCost := existing.Cost
		prevValue, prevExpiresAt := existing.Value, existing.ExpiresAt
		existing.Value = value
		existing.Cost = newCost
		if ttl > 0 {
			existing.ExpiresAt = now.Add(ttl)
			s.wheel.Insert(key, existing.ExpiresAt)
		} else {
			existing.ExpiresAt = time.Time{}
			s.wheel.Remove(key)
		}
		s.pressure.Add(int64(newCost - oldCost))
		s.policy.RecordAccess(key)

		if err := s.commitRecord(wal.Record{TimestampNS: now.UnixNano(), ShardID: s.id, Op: wal.OpPut, Key: key, Value: value, TTL: ttl}); err != nil {
			// Sync failure: roll back the overwrite entirely.
			existing.Value = prevValue
			existing.Cost = oldCost
			existing.ExpiresAt = prevExpiresAt
			if prevExpiresAt.IsZero() {
				s.wheel.Remove(key)
			} else {
				s.wheel.Insert(key, prevExpiresAt)
			}
			s.pressure.Sub(int64(newCost - oldCost))
			return Rejected, nil
		}
		return Updated, nil
	}

	outcome, victim, hasVictim := s.policy.Admit(key)
	if outcome == tinylfu.Reject {
		s.rejections++
		return Rejected, nil
	}
	if hasVictim {
		s.removeEntryLocked(victim)
		s.evictions++
	}

	entry := &Entry{Key: append([]byte(nil), key...), Value: value, CreatedAt: now, Cost: newCost}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
		s.wheel.Insert(key, entry.ExpiresAt)
	}
	s.entries[ks] = entry
	s.pressure.Add(int64(newCost))
	s.admissions++

	if err := s.commitRecord(wal.Record{TimestampNS: now.UnixNano(), ShardID: s.id, Op: wal.OpPut, Key: key, Value: value, TTL: ttl}); err != nil {
		delete(s.entries, ks)
		s.wheel.Remove(key)
		s.pressure.Sub(int64(newCost))
		s.policy.Remove(key)
		return Rejected, nil
	}

	s.maybeEvictUnderPressureLocked(now)
	return Inserted, nil
}

// Get returns the value for key if present and unexpired (spec §4.5).
func (s *Shard) Get(key []byte, now time.Time) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepExpiredLocked(now)

	e, ok := s.entries[string(key)]
	if !ok {
		s.misses++
		return nil, false
	}
	if e.expired(now) {
		s.removeEntryLocked(key)
		s.expirations++
		s.misses++
		return nil, false
	}
	s.policy.RecordAccess(key)
	s.hits++
	return e.Value, true
}

// Delete removes key, returning whether it was present (spec §4.5).
func (s *Shard) Delete(key []byte, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[string(key)]; !ok {
		return false
	}
	s.removeEntryLocked(key)
	_ = s.commitRecord(wal.Record{TimestampNS: now.UnixNano(), ShardID: s.id, Op: wal.OpDelete, Key: key})
	return true
}

// Expire sets or updates key's absolute expiry, returning false if key is
// absent (spec §4.5).
func (s *Shard) Expire(key []byte, ttl time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[string(key)]
	if !ok {
		return false
	}
	if e.expired(now) {
		s.removeEntryLocked(key)
		s.expirations++
		return false
	}
	e.ExpiresAt = now.Add(ttl)
	s.wheel.Insert(key, e.ExpiresAt)
	_ = s.commitRecord(wal.Record{TimestampNS: now.UnixNano(), ShardID: s.id, Op: wal.OpExpire, Key: key, TTL: ttl})
	return true
}

// AdvanceTTL drives the wheel's active sweep (spec §4.6), deleting every key
// the wheel reports as due. Called both by the manager's background ticker
// and opportunistically at the start of Put/Get.
func (s *Shard) AdvanceTTL(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepExpiredLocked(now)
}

func (s *Shard) sweepExpiredLocked(now time.Time) int {
	due := s.wheel.Advance(now)
	for _, ks := range due {
		if e, ok := s.entries[ks]; ok {
			s.pressure.Sub(int64(e.Cost))
			delete(s.entries, ks)
			s.policy.Remove(e.Key)
			s.expirations++
		}
	}
	return len(due)
}

// removeEntryLocked deletes key from every structure but does not touch WAL
// or counters beyond byte accounting; callers bump the right counter.
func (s *Shard) removeEntryLocked(key []byte) {
	ks := string(key)
	e, ok := s.entries[ks]
	if !ok {
		return
	}
	delete(s.entries, ks)
	s.wheel.Remove(key)
	s.policy.Remove(key)
	s.pressure.Sub(int64(e.Cost))
}

// maybeEvictUnderPressureLocked implements the Gradual/Batch eviction modes
// (spec §4.3, §4.4): eviction runs only while the pressure monitor signals
// Critical, and the floor min_items_threshold is never breached.
func (s *Shard) maybeEvictUnderPressureLocked(now time.Time) {
	if !s.pressure.ShouldEvict() {
		return
	}
	switch s.cfg.EvictionStrategy {
	case config.Batch:
		evicted := 0
		for s.pressure.ShouldEvict() && len(s.entries) > s.cfg.MinItemsThreshold {
			victim, ok := s.policy.EvictVictim()
			if !ok {
				break
			}
			s.removeEntryLocked(victim)
			s.evictions++
			evicted++
			if evicted%s.cfg.BatchSize == 0 {
				// Yield point for long batch evictions (spec §5).
				s.mu.Unlock()
				s.mu.Lock()
			}
		}
	default: // Gradual
		if len(s.entries) <= s.cfg.MinItemsThreshold {
			return
		}
		if victim, ok := s.policy.EvictVictim(); ok {
			s.removeEntryLocked(victim)
			s.evictions++
		}
	}
}

// commitRecord writes rec to the WAL if enabled. Under Sync policy, a
// failure is returned so the caller rolls back the just-applied mutation
// (spec §7); under Async/None the writer tracks its own sticky error and
// the mutation stands.
func (s *Shard) commitRecord(rec wal.Record) error {
	if s.walWriter == nil {
		return nil
	}
	if err := s.walWriter.Append(rec); err != nil && s.cfg.WALSyncPolicy == config.WALSync {
		return err
	}
	return nil
}

// Stats returns a point-in-time snapshot (spec §4.5).
func (s *Shard) Stats() ShardStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ShardStats{
		KeyCount:    len(s.entries),
		BytesUsed:   s.pressure.BytesUsed(),
		BytesLimit:  s.pressure.Budget(),
		Hits:        s.hits,
		Misses:      s.misses,
		Admissions:  s.admissions,
		Rejections:  s.rejections,
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
}

// Replay applies a recovered WAL record directly, bypassing admission and
// eviction (spec §4.8 step 4). It implements wal.Replayer.
func (s *Shard) Replay(rec wal.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Unix(0, rec.TimestampNS)
	ks := string(rec.Key)
	switch rec.Op {
	case wal.OpPut:
		cost := entryCost(rec.Key, rec.Value)
		e, exists := s.entries[ks]
		if exists {
			s.pressure.Sub(int64(e.Cost))
		}
		entry := &Entry{Key: append([]byte(nil), rec.Key...), Value: append([]byte(nil), rec.Value...), CreatedAt: now, Cost: cost}
		if rec.TTL > 0 {
			entry.ExpiresAt = now.Add(rec.TTL)
			s.wheel.Insert(rec.Key, entry.ExpiresAt)
		}
		s.entries[ks] = entry
		s.pressure.Add(int64(cost))
		s.policy.RecordAccess(rec.Key)
	case wal.OpDelete:
		if e, ok := s.entries[ks]; ok {
			delete(s.entries, ks)
			s.wheel.Remove(rec.Key)
			s.pressure.Sub(int64(e.Cost))
			s.policy.Remove(rec.Key)
		}
	case wal.OpExpire:
		if e, ok := s.entries[ks]; ok {
			e.ExpiresAt = now.Add(rec.TTL)
			s.wheel.Insert(rec.Key, e.ExpiresAt)
		}
	}
	return nil
}
