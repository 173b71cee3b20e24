package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RogerFelipeNsk/crabcache/config"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = fmt.Errorf("wal: writer closed")

// Stats is a point-in-time snapshot of the writer's durability state,
// surfaced through store.Stats / the STATS command (spec §4.8, §6).
type Stats struct {
	EntriesWritten uint64
	SegmentsOpened uint64
	BytesWritten   int64
	StickyError    error
}

// Writer appends Records to a rotating sequence of segment files. It holds
// its own mutex because shard writers call Append directly off the hot
// path; the teacher's cache.shard takes the same approach of a narrow lock
// around a single resource rather than sharing the shard's own lock.
type Writer struct {
	dir            string
	maxSegmentSize int64
	syncPolicy     config.WALSyncPolicy
	flushInterval  time.Duration

	mu         sync.Mutex
	file       *os.File
	bufw       *bufio.Writer
	segID      uint64
	segSize    int64
	segEntries uint64

	entriesWritten uint64
	bytesWritten   int64
	stickyErr      error
	closed         bool

	stopFlush chan struct{}
	flushDone chan struct{}
}

// Open creates dir if needed and starts a fresh segment. If cfg.WALSyncPolicy
// is Async, a background goroutine flushes on cfg.WALFlushInterval.
func Open(cfg config.Config) (*Writer, error) {
	if err := os.MkdirAll(cfg.WALDir, 0o755); err != nil {
		return nil, err
	}
	existing, err := listSegments(cfg.WALDir)
	if err != nil {
		return nil, err
	}
	var nextID uint64
	if len(existing) > 0 {
		last, err := segmentIDFromName(existing[len(existing)-1])
		if err == nil {
			nextID = last + 1
		}
	}

	w := &Writer{
		dir:            cfg.WALDir,
		maxSegmentSize: cfg.WALMaxSegmentSize,
		syncPolicy:     cfg.WALSyncPolicy,
		flushInterval:  cfg.WALFlushInterval,
		segID:          nextID,
	}
	if err := w.openSegment(); err != nil {
		return nil, err
	}
	if w.syncPolicy == config.WALAsync {
		w.stopFlush = make(chan struct{})
		w.flushDone = make(chan struct{})
		go w.flushLoop()
	}
	return w, nil
}

func (w *Writer) openSegment() error {
	path := filepath.Join(w.dir, segmentName(w.segID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	hdr := segmentHeader{Version: segmentVersion, CreatedAtNS: 0, EntryCount: 0}
	// [u32 header_len][header_bytes] per spec §6; header_len is fixed at
	// segmentHeaderLen for every segment this writer creates.
	n, err := writeFramed(f, hdr.encode())
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.bufw = bufio.NewWriter(f)
	w.segSize = int64(n)
	w.segEntries = 0
	w.segID++ // next rotation uses the following id
	return nil
}

// Append encodes and writes rec. Under WALSync it flushes and fsyncs before
// returning so the caller can trust the record is durable; under
// WALAsync/WALNone it only buffers, and a write failure here is recorded as
// a sticky error rather than returned, matching spec §7's "best effort,
// logging continues in a degraded state" for non-Sync policies.
func (w *Writer) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.stickyErr != nil {
		if w.syncPolicy == config.WALSync {
			return w.stickyErr
		}
		return nil
	}

	body := rec.Encode()
	n, err := writeFramed(w.bufw, body)
	if err != nil {
		w.setSticky(err)
		if w.syncPolicy == config.WALSync {
			return err
		}
		return nil
	}
	w.segSize += int64(n)
	w.segEntries++
	w.entriesWritten++
	w.bytesWritten += int64(n)

	if w.syncPolicy == config.WALSync {
		if err := w.flushLocked(); err != nil {
			w.setSticky(err)
			return err
		}
	}

	if w.segSize >= w.maxSegmentSize {
		if err := w.rotateLocked(); err != nil {
			w.setSticky(err)
			if w.syncPolicy == config.WALSync {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) flushLocked() error {
	if err := w.bufw.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// rotateLocked closes the current segment (patching its header with the
// final entry count) and opens the next one.
func (w *Writer) rotateLocked() error {
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := patchEntryCount(w.file, w.segEntries); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	return w.openSegment()
}

func (w *Writer) setSticky(err error) {
	if w.stickyErr == nil {
		w.stickyErr = err
	}
}

func (w *Writer) flushLoop() {
	defer close(w.flushDone)
	t := time.NewTicker(w.flushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			w.mu.Lock()
			if !w.closed && w.stickyErr == nil {
				if err := w.flushLocked(); err != nil {
					w.setSticky(err)
				}
			}
			w.mu.Unlock()
		case <-w.stopFlush:
			return
		}
	}
}

// Stats returns a snapshot of the writer's counters.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		EntriesWritten: w.entriesWritten,
		SegmentsOpened: w.segID,
		BytesWritten:   w.bytesWritten,
		StickyError:    w.stickyErr,
	}
}

// Close flushes, patches the final segment header and stops the background
// flusher. A nil Writer and a second Close are no-ops.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	if w.stopFlush != nil {
		close(w.stopFlush)
		<-w.flushDone
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.flushLocked()
	if perr := patchEntryCount(w.file, w.segEntries); err == nil {
		err = perr
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// patchEntryCount seeks back to the header's entry_count field and rewrites
// it, along with the header CRC that covers it, so a clean shutdown leaves
// an accurate count without needing to buffer the whole segment in memory.
// The write lands after the [u32 header_len] prefix, which is fixed at
// segment creation and never needs rewriting. A crash before this runs
// leaves entry_count at 0; recovery does not read entry_count and streams
// each segment to EOF regardless.
func patchEntryCount(f *os.File, count uint64) error {
	hdr := segmentHeader{Version: segmentVersion, CreatedAtNS: 0, EntryCount: count}
	buf := hdr.encode()
	if _, err := f.WriteAt(buf, segmentHeaderLenPrefix); err != nil {
		return err
	}
	return nil
}
