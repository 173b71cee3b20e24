// Package store implements the per-shard entry table and the shard manager
// that fans commands out across shards (spec §3 "Entry"/"Shard", §4.5,
// §4.9). It is grounded on the teacher's cache/shard.go (lock discipline,
// hit/miss/evict counters) and cache/cache.go (shard fan-out by key hash),
// generalized from a generic in-process cache to a byte-keyed store with
// TTL, TinyLFU admission and optional WAL persistence.
package store

import "time"

// entryOverhead approximates the bookkeeping cost of one resident entry
// (map slot, struct header, list node) beyond its raw key/value bytes, per
// spec §3's "|key| + |value| + fixed overhead" cost formula.
const entryOverhead = 48

// Entry is one cached key (spec §3 "Entry"). A zero ExpiresAt means no TTL.
type Entry struct {
	Key       []byte
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
	Cost      int
}

func entryCost(key, value []byte) int {
	return len(key) + len(value) + entryOverhead
}

func (e *Entry) hasExpiry() bool { return !e.ExpiresAt.IsZero() }

func (e *Entry) expired(now time.Time) bool {
	return e.hasExpiry() && !now.Before(e.ExpiresAt)
}
