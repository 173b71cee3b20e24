package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	segmentVersion   uint32 = 1
	segmentExt              = ".wal"
	segmentPrefix           = "seg-"
	segmentIDDigits         = 16
	segmentHeaderLen        = 4 + 8 + 8 + 4 // version + created_at_ns + entry_count + crc32
	// segmentHeaderLenPrefix is the on-disk [u32 header_len] prefix spec §6
	// makes authoritative ahead of the header bytes themselves
	// ([u32 header_len][header_bytes][entry*]).
	segmentHeaderLenPrefix = 4
)

// segmentName formats the filename for segment id so that lexicographic and
// creation-order sorts agree (spec §4.7 "segments sort by filename").
func segmentName(id uint64) string {
	return fmt.Sprintf("%s%0*d%s", segmentPrefix, segmentIDDigits, id, segmentExt)
}

// listSegments returns every "seg-*.wal" file under dir, sorted by segment id
// ascending (oldest first).
func listSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, segmentPrefix) && strings.HasSuffix(n, segmentExt) {
			names = append(names, n)
		}
	}
	sort.Strings(names) // zero-padded ids sort lexicographically == numerically
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// segmentIDFromName extracts the numeric id from a "seg-%016d.wal" filename.
func segmentIDFromName(path string) (uint64, error) {
	base := filepath.Base(path)
	base = strings.TrimPrefix(base, segmentPrefix)
	base = strings.TrimSuffix(base, segmentExt)
	return strconv.ParseUint(base, 10, 64)
}

// segmentHeader is the fixed-size record at the start of every segment file.
type segmentHeader struct {
	Version     uint32
	CreatedAtNS int64
	EntryCount  uint64
}

// encode returns the header bytes including its trailing CRC32.
func (h segmentHeader) encode() []byte {
	buf := make([]byte, segmentHeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(h.CreatedAtNS))
	binary.LittleEndian.PutUint64(buf[12:20], h.EntryCount)
	crc := crc32.ChecksumIEEE(buf[0:20])
	binary.LittleEndian.PutUint32(buf[20:24], crc)
	return buf
}

// decodeSegmentHeader parses and validates a header read from disk.
func decodeSegmentHeader(buf []byte) (segmentHeader, error) {
	if len(buf) != segmentHeaderLen {
		return segmentHeader{}, ErrCorruptRecord
	}
	crc := crc32.ChecksumIEEE(buf[0:20])
	if crc != binary.LittleEndian.Uint32(buf[20:24]) {
		return segmentHeader{}, ErrCorruptRecord
	}
	return segmentHeader{
		Version:     binary.LittleEndian.Uint32(buf[0:4]),
		CreatedAtNS: int64(binary.LittleEndian.Uint64(buf[4:12])),
		EntryCount:  binary.LittleEndian.Uint64(buf[12:20]),
	}, nil
}
