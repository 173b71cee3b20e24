package wal

import (
	"testing"

	"github.com/RogerFelipeNsk/crabcache/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.EnableWAL = true
	cfg.WALDir = t.TempDir()
	cfg.WALMaxSegmentSize = 1 << 20
	cfg.WALSyncPolicy = config.WALNone
	return cfg
}

func TestWriter_AppendAccumulatesStats(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	w, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	for i := 0; i < 5; i++ {
		rec := Record{TimestampNS: int64(i), ShardID: 0, Op: OpPut, Key: []byte("k"), Value: []byte("v")}
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	st := w.Stats()
	if st.EntriesWritten != 5 {
		t.Fatalf("expected 5 entries written, got %d", st.EntriesWritten)
	}
	if st.StickyError != nil {
		t.Fatalf("unexpected sticky error: %v", st.StickyError)
	}
}

func TestWriter_RotatesAtMaxSegmentSize(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.WALMaxSegmentSize = segmentHeaderLen + 40 // force rotation almost immediately
	w, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	for i := 0; i < 20; i++ {
		rec := Record{TimestampNS: int64(i), ShardID: 0, Op: OpPut, Key: []byte("k"), Value: []byte("v")}
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	segs, err := listSegments(cfg.WALDir)
	if err != nil {
		t.Fatalf("listSegments: %v", err)
	}
	if len(segs) < 2 {
		t.Fatalf("expected rotation to produce multiple segments, got %d", len(segs))
	}
}

func TestWriter_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	w, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}

func TestWriter_AppendAfterCloseFails(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	w, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	rec := Record{TimestampNS: 1, ShardID: 0, Op: OpPut, Key: []byte("k"), Value: []byte("v")}
	if err := w.Append(rec); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
