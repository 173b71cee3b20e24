// Package config holds the validated parameter bundle the core accepts.
// Loading configuration from a file or flags is an external concern (see
// cmd/server); this package only validates the parsed result, the same
// split the teacher draws between cache.Options and its cmd/bench flags.
package config

import (
	"fmt"
	"time"
)

// EvictionStrategy selects how the TinyLFU policy sheds load under memory
// pressure.
type EvictionStrategy string

const (
	// Gradual evicts at most one victim per PUT that enters Critical state.
	Gradual EvictionStrategy = "Gradual"
	// Batch evicts tail keys until the ratio drops under the low watermark
	// or the population reaches MinItemsThreshold, yielding the shard lock
	// after every BatchSize evictions.
	Batch EvictionStrategy = "Batch"
)

// WALSyncPolicy controls the durability/latency tradeoff of the WAL writer.
type WALSyncPolicy string

const (
	// WALNone buffers entries in memory; flush only at rotation/close.
	WALNone WALSyncPolicy = "None"
	// WALAsync flushes on a fixed interval in the background.
	WALAsync WALSyncPolicy = "Async"
	// WALSync flushes and fsyncs before each mutating op returns.
	WALSync WALSyncPolicy = "Sync"
)

// Config bundles every recognized option from the external configuration
// surface (spec §6). Zero-value Config is invalid; call Validate (or
// Default().Validate()) before use.
type Config struct {
	NumShards int
	// BytesPerShard is the memory budget for a single shard, in bytes.
	BytesPerShard int64

	WindowRatio  float64
	SketchWidth  int
	SketchDepth  int
	HighWatermark float64
	LowWatermark  float64

	EvictionStrategy  EvictionStrategy
	BatchSize         int
	MinItemsThreshold int
	AdmissionMultiplier float64

	EnableWAL        bool
	WALDir           string
	WALMaxSegmentSize int64
	WALSyncPolicy    WALSyncPolicy
	WALFlushInterval time.Duration

	MaxBatchSize             int
	ConnectionTimeoutSeconds int
	MaxConnections           int
	BufferSize               int

	TickIntervalMS int
	SlotWidth      time.Duration
	Horizon        time.Duration

	BindAddr string
}

// Default returns the option table from spec §6 with every default applied.
func Default() Config {
	return Config{
		NumShards:     4,
		BytesPerShard: 1 << 30, // 1 GiB

		WindowRatio:   0.01,
		SketchWidth:   1024,
		SketchDepth:   4,
		HighWatermark: 0.85,
		LowWatermark:  0.70,

		EvictionStrategy:    Gradual,
		BatchSize:           50,
		MinItemsThreshold:   500,
		AdmissionMultiplier: 1.0,

		EnableWAL:         false,
		WALDir:            "./data/wal",
		WALMaxSegmentSize: 64 << 20, // 64 MiB
		WALSyncPolicy:     WALAsync,
		WALFlushInterval:  time.Second,

		MaxBatchSize:             16,
		ConnectionTimeoutSeconds: 30,
		MaxConnections:           1000,
		BufferSize:               16 << 10, // 16 KiB

		TickIntervalMS: 100,
		SlotWidth:      time.Second,
		Horizon:        time.Hour,

		BindAddr: "0.0.0.0:8000",
	}
}

// Validate rejects invalid configurations with a descriptive error, per
// spec §6 ("Invalid configurations ... must be rejected at construction").
func (c Config) Validate() error {
	if c.NumShards <= 0 {
		return fmt.Errorf("config: num_shards must be > 0, got %d", c.NumShards)
	}
	if c.BytesPerShard <= 0 {
		return fmt.Errorf("config: bytes_per_shard must be > 0, got %d", c.BytesPerShard)
	}
	if c.WindowRatio <= 0 || c.WindowRatio >= 1 {
		return fmt.Errorf("config: window_ratio must be in (0,1), got %v", c.WindowRatio)
	}
	if c.SketchWidth <= 0 || c.SketchDepth <= 0 {
		return fmt.Errorf("config: sketch_width and sketch_depth must be > 0, got %d/%d", c.SketchWidth, c.SketchDepth)
	}
	if !(0 < c.LowWatermark && c.LowWatermark < c.HighWatermark && c.HighWatermark <= 1) {
		return fmt.Errorf("config: watermarks must satisfy 0 < low < high <= 1, got low=%v high=%v", c.LowWatermark, c.HighWatermark)
	}
	switch c.EvictionStrategy {
	case Gradual, Batch:
	default:
		return fmt.Errorf("config: eviction_strategy must be Gradual or Batch, got %q", c.EvictionStrategy)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be > 0, got %d", c.BatchSize)
	}
	capacity := windowCapacity(c) + mainCapacity(c)
	if !(c.MinItemsThreshold > 0 && c.MinItemsThreshold < capacity) {
		return fmt.Errorf("config: min_items_threshold must satisfy 0 < n < capacity(%d), got %d", capacity, c.MinItemsThreshold)
	}
	if c.AdmissionMultiplier <= 0 {
		return fmt.Errorf("config: admission_multiplier must be > 0, got %v", c.AdmissionMultiplier)
	}
	if c.EnableWAL {
		if c.WALDir == "" {
			return fmt.Errorf("config: wal_dir must be set when enable_wal is true")
		}
		if c.WALMaxSegmentSize <= 0 {
			return fmt.Errorf("config: wal_max_segment_size must be > 0, got %d", c.WALMaxSegmentSize)
		}
		switch c.WALSyncPolicy {
		case WALNone, WALAsync, WALSync:
		default:
			return fmt.Errorf("config: wal_sync_policy must be None, Async or Sync, got %q", c.WALSyncPolicy)
		}
	}
	if c.MaxBatchSize <= 0 || c.MaxBatchSize > 1000 {
		return fmt.Errorf("config: max_batch_size must be in [1,1000], got %d", c.MaxBatchSize)
	}
	if c.ConnectionTimeoutSeconds <= 0 {
		return fmt.Errorf("config: connection_timeout_seconds must be > 0, got %d", c.ConnectionTimeoutSeconds)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("config: max_connections must be > 0, got %d", c.MaxConnections)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("config: buffer_size must be > 0, got %d", c.BufferSize)
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("config: tick_interval_ms must be > 0, got %d", c.TickIntervalMS)
	}
	if c.SlotWidth <= 0 {
		return fmt.Errorf("config: slot width must be > 0")
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("config: horizon must be > 0")
	}
	return nil
}

// windowCapacity returns the Window-LRU entry count Validate checks the
// min_items_threshold floor against. The policy sizes its LRUs by *entry
// count*, not bytes, so the split is derived from nominalCapacity (see
// store.NewShard, which passes it through WindowCapacity/MainCapacity).
func windowCapacity(c Config) int {
	// nominalCapacity translates BytesPerShard into an entry count using an
	// assumed 128-byte average entry, with a floor of 2, so the floor check
	// does not require the caller to know the average entry size up front.
	cap := nominalCapacity(c)
	w := int(float64(cap) * c.WindowRatio)
	if w < 1 {
		w = 1
	}
	return w
}

func mainCapacity(c Config) int {
	cap := nominalCapacity(c)
	w := windowCapacity(c)
	m := cap - w
	if m < 1 {
		m = 1
	}
	return m
}

func nominalCapacity(c Config) int {
	const assumedAvgEntrySize = 128
	cap := int(c.BytesPerShard / assumedAvgEntrySize)
	if cap < 2 {
		cap = 2
	}
	return cap
}

// Capacity returns the nominal per-shard entry-count capacity used to size
// the TinyLFU Window/Main LRUs, assuming an average entry size. store.NewShard
// sizes every shard's policy from it; NumShards does not affect it.
func (c Config) Capacity() int { return nominalCapacity(c) }

// WindowCapacity returns the Window-LRU size for the given nominal capacity.
func (c Config) WindowCapacity(capacity int) int {
	w := int(float64(capacity) * c.WindowRatio)
	if w < 1 {
		w = 1
	}
	if w >= capacity {
		w = capacity - 1
	}
	if w < 1 {
		w = 1
	}
	return w
}

// MainCapacity returns the Main-LRU size for the given nominal capacity.
func (c Config) MainCapacity(capacity int) int {
	m := capacity - c.WindowCapacity(capacity)
	if m < 1 {
		m = 1
	}
	return m
}
