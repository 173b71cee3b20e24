// Package tinylfu implements the admission + eviction policy described in
// spec §4.1-§4.4: a Count-Min frequency sketch, a Window-LRU/Main-LRU pair,
// the TinyLFU admission decision, and a byte-budget pressure monitor.
//
// The Window/Main ordered sets are grounded on the teacher's
// policy/twoq package (container/list plus an index map for O(1)
// membership, the same shape as its A1in/A1out ghost queues); the sketch's
// saturating-counter-plus-periodic-halving aging is grounded on
// agilira/balios's frequencySketch and dgraph-io/ristretto's Sketch
// contract (Increment/Estimate/min-of-D-rows).
package tinylfu

import "github.com/RogerFelipeNsk/crabcache/internal/util"

const maxCounter = 255 // uint8 saturating counter ceiling

// Sketch is a Count-Min Sketch with D independent rows of W saturating
// 8-bit counters. Increment/Estimate are O(D); Reset halves every counter
// in place (aging, O(W*D)).
type Sketch struct {
	width, depth int
	counters     []uint8 // flat depth*width matrix, row-major
	seeds        []uint64
}

// NewSketch builds a sketch with the given dimensions. Both must be > 0.
// Seeds are derived from a fixed constant so construction is reproducible
// across runs, per spec ("seeds fixed at construction, not derived from
// entry keys").
func NewSketch(width, depth int) *Sketch {
	if width <= 0 || depth <= 0 {
		panic("tinylfu: sketch width and depth must be > 0")
	}
	s := &Sketch{
		width:    width,
		depth:    depth,
		counters: make([]uint8, width*depth),
		seeds:    make([]uint64, depth),
	}
	seed := uint64(0x2545f4914f6cdd1d)
	for i := 0; i < depth; i++ {
		seed = splitmix64(seed)
		s.seeds[i] = seed
	}
	return s
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	z := x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (s *Sketch) index(row int, key []byte) int {
	h := util.SeededHash(key, s.seeds[row])
	return row*s.width + int(h%uint64(s.width))
}

// Increment adds 1 to all D rows for key, saturating at 255 per row.
func (s *Sketch) Increment(key []byte) {
	for row := 0; row < s.depth; row++ {
		idx := s.index(row, key)
		if s.counters[idx] < maxCounter {
			s.counters[idx]++
		}
	}
}

// Estimate returns the minimum counter across the D rows for key.
func (s *Sketch) Estimate(key []byte) uint8 {
	min := uint8(maxCounter)
	for row := 0; row < s.depth; row++ {
		c := s.counters[s.index(row, key)]
		if c < min {
			min = c
		}
	}
	return min
}

// Reset halves every counter in place (integer right-shift), aging out
// stale frequency information without losing relative ordering.
func (s *Sketch) Reset() {
	for i, c := range s.counters {
		s.counters[i] = c >> 1
	}
}
