package store

import (
	"context"
	"testing"
	"time"

	"github.com/RogerFelipeNsk/crabcache/config"
)

func testManagerConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.NumShards = 4
	cfg.BytesPerShard = 1 << 20
	cfg.TickIntervalMS = 10
	return cfg
}

func TestManager_PutGetDeleteRoundTrip(t *testing.T) {
	t.Parallel()
	m, err := Open(testManagerConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if _, err := m.Put([]byte("alpha"), []byte("42"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := m.Get([]byte("alpha"))
	if !ok || string(got) != "42" {
		t.Fatalf("expected (42,true), got (%q,%v)", got, ok)
	}
	if !m.Delete([]byte("alpha")) {
		t.Fatalf("expected delete to report present")
	}
	if _, ok := m.Get([]byte("alpha")); ok {
		t.Fatalf("expected alpha absent after delete")
	}
}

func TestManager_StatsAggregatesAcrossShards(t *testing.T) {
	t.Parallel()
	m, err := Open(testManagerConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	for i := 0; i < 20; i++ {
		m.Put([]byte{byte(i), byte(i >> 8), byte('x')}, []byte("v"), 0)
	}
	for i := 0; i < 20; i++ {
		m.Get([]byte{byte(i), byte(i >> 8), byte('x')})
	}

	stats, err := m.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NumShards != 4 {
		t.Fatalf("expected 4 shards, got %d", stats.NumShards)
	}
	if stats.KeyCount != 20 {
		t.Fatalf("expected 20 keys total, got %d", stats.KeyCount)
	}
	if stats.Hits != 20 {
		t.Fatalf("expected 20 hits, got %d", stats.Hits)
	}
}

func TestManager_StatsCoalescesConcurrentCallers(t *testing.T) {
	t.Parallel()
	m, err := Open(testManagerConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()
	m.Put([]byte("k"), []byte("v"), 0)

	const n = 16
	results := make(chan Stats, n)
	for i := 0; i < n; i++ {
		go func() {
			st, err := m.Stats(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			results <- st
		}()
	}
	for i := 0; i < n; i++ {
		st := <-results
		if st.KeyCount != 1 {
			t.Fatalf("expected consistent KeyCount=1 across coalesced callers, got %d", st.KeyCount)
		}
	}
}

func TestManager_WALRecoveryRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg := testManagerConfig(t)
	cfg.EnableWAL = true
	cfg.WALDir = dir
	cfg.WALSyncPolicy = config.WALSync // deterministic: every write durable before Close

	m1, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := m1.Put([]byte("x"), []byte("1"), 0); err != nil {
		t.Fatalf("Put x: %v", err)
	}
	if _, err := m1.Put([]byte("y"), []byte("2"), 0); err != nil {
		t.Fatalf("Put y: %v", err)
	}
	if !m1.Delete([]byte("x")) {
		t.Fatalf("expected x to be deleted")
	}
	if _, err := m1.Put([]byte("z"), []byte("3"), 0); err != nil {
		t.Fatalf("Put z: %v", err)
	}
	if err := m1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Close()

	if _, ok := m2.Get([]byte("x")); ok {
		t.Fatalf("expected x absent after recovery (was deleted)")
	}
	if v, ok := m2.Get([]byte("y")); !ok || string(v) != "2" {
		t.Fatalf("expected y=2 after recovery, got (%q,%v)", v, ok)
	}
	if v, ok := m2.Get([]byte("z")); !ok || string(v) != "3" {
		t.Fatalf("expected z=3 after recovery, got (%q,%v)", v, ok)
	}

	stats, err := m2.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.LastRecoveryInfo == nil {
		t.Fatalf("expected LastRecoveryInfo to be populated after a WAL-enabled Open")
	}
	if stats.LastRecoveryInfo.EntriesRecovered != 4 {
		t.Fatalf("expected 4 entries recovered, got %d", stats.LastRecoveryInfo.EntriesRecovered)
	}
}

func TestManager_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.NumShards = 0
	if _, err := Open(cfg); err == nil {
		t.Fatalf("expected Open to reject an invalid config")
	}
}

func TestManager_TTLTickerExpiresKeysInBackground(t *testing.T) {
	t.Parallel()
	cfg := testManagerConfig(t)
	cfg.TickIntervalMS = 5
	m, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	m.Put([]byte("short"), []byte("v"), 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	if _, ok := m.Get([]byte("short")); ok {
		t.Fatalf("expected short-lived key to have expired via background tick")
	}
}
