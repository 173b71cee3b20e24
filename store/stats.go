package store

import "github.com/RogerFelipeNsk/crabcache/wal"

// Stats is the aggregated snapshot returned by Manager.Stats and rendered by
// the STATS wire command (SPEC_FULL §5 "STATS response shape").
type Stats struct {
	NumShards int          `json:"num_shards"`
	Shards    []ShardStats `json:"shards"`

	KeyCount    int    `json:"key_count"`
	BytesUsed   int64  `json:"bytes_used"`
	BytesLimit  int64  `json:"bytes_limit"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Admissions  uint64 `json:"admissions"`
	Rejections  uint64 `json:"rejections"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`

	WALEnabled       bool   `json:"wal_enabled"`
	WALEntries       uint64 `json:"wal_entries_written"`
	WALSegments      uint64 `json:"wal_segments_opened"`
	WALStickyError   string `json:"wal_sticky_error,omitempty"`
	LastRecoveryInfo *wal.RecoveryStats `json:"last_recovery,omitempty"`
}

func aggregate(shardStats []ShardStats, numShards int, walStats *wal.Stats, recovery *wal.RecoveryStats) Stats {
	st := Stats{NumShards: numShards, Shards: shardStats}
	for _, s := range shardStats {
		st.KeyCount += s.KeyCount
		st.BytesUsed += s.BytesUsed
		st.BytesLimit += s.BytesLimit
		st.Hits += s.Hits
		st.Misses += s.Misses
		st.Admissions += s.Admissions
		st.Rejections += s.Rejections
		st.Evictions += s.Evictions
		st.Expirations += s.Expirations
	}
	if walStats != nil {
		st.WALEnabled = true
		st.WALEntries = walStats.EntriesWritten
		st.WALSegments = walStats.SegmentsOpened
		if walStats.StickyError != nil {
			st.WALStickyError = walStats.StickyError.Error()
		}
	}
	st.LastRecoveryInfo = recovery
	return st
}
