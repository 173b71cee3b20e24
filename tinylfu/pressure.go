package tinylfu

import (
	"sync/atomic"

	"github.com/RogerFelipeNsk/crabcache/internal/util"
)

// State is one of the three hysteretic memory-pressure states (spec §3).
type State int

const (
	// Normal: ratio < low watermark.
	Normal State = iota
	// Pressure: low <= ratio < high.
	Pressure
	// Critical: ratio >= high. Eviction runs until ratio drops below low.
	Critical
)

func (s State) String() string {
	switch s {
	case Normal:
		return "Normal"
	case Pressure:
		return "Pressure"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// PressureMonitor tracks one shard's byte usage against its budget and
// reports hysteretic pressure transitions (spec §4.4). byteUsage is atomic
// so Ratio/State may be read without the shard lock (e.g. from metrics
// collection), but Add/Sub are still expected to be called under the
// shard's exclusive access the same way the teacher updates shard.cost.
// It is cache-line padded the same way the teacher pads its own lock-free
// shard counters (util.PaddedAtomicInt64), since one PressureMonitor per
// shard sits in a slice and adjacent shards' hot counters would otherwise
// share a cache line under concurrent access from different goroutines.
type PressureMonitor struct {
	byteUsage util.PaddedAtomicInt64
	budget    int64
	high, low float64

	// critical latches true on entering Critical and only clears once the
	// ratio falls back under low — the hysteresis spec §3 requires.
	critical atomic.Bool
}

// NewPressureMonitor builds a monitor for a budget of budget bytes with the
// given watermarks (0 < low < high <= 1, validated by config.Config).
func NewPressureMonitor(budget int64, high, low float64) *PressureMonitor {
	return &PressureMonitor{budget: budget, high: high, low: low}
}

// Add accounts n additional bytes as used.
func (m *PressureMonitor) Add(n int64) { m.byteUsage.Add(n) }

// Sub accounts n fewer bytes as used (clamped at 0 to tolerate accounting
// races during concurrent shrink/grow bookkeeping within a single shard
// lock — it should never go negative in practice).
func (m *PressureMonitor) Sub(n int64) {
	for {
		cur := m.byteUsage.Load()
		next := cur - n
		if next < 0 {
			next = 0
		}
		if m.byteUsage.CompareAndSwap(cur, next) {
			return
		}
	}
}

// BytesUsed returns the current accounted byte usage.
func (m *PressureMonitor) BytesUsed() int64 { return m.byteUsage.Load() }

// Budget returns the configured byte budget.
func (m *PressureMonitor) Budget() int64 { return m.budget }

// Ratio returns bytes_used / byte_budget.
func (m *PressureMonitor) Ratio() float64 {
	if m.budget <= 0 {
		return 0
	}
	return float64(m.byteUsage.Load()) / float64(m.budget)
}

// State classifies the current ratio into Normal/Pressure/Critical.
func (m *PressureMonitor) State() State {
	r := m.Ratio()
	switch {
	case r >= m.high:
		return Critical
	case r >= m.low:
		return Pressure
	default:
		return Normal
	}
}

// ShouldEvict reports whether the caller should run an eviction pass right
// now: true from the moment the ratio first enters Critical, and true on
// every subsequent call until the ratio drops back under low (hysteresis —
// spec §3: "eviction starts on entering Critical and stops only when the
// ratio drops below low").
func (m *PressureMonitor) ShouldEvict() bool {
	r := m.Ratio()
	if r < m.low {
		m.critical.Store(false)
		return false
	}
	if r >= m.high {
		m.critical.Store(true)
		return true
	}
	// Pressure band: keep evicting only if we were already in a Critical
	// episode that hasn't dropped under low yet.
	return m.critical.Load()
}
