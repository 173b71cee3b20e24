package tinylfu

import "testing"

func TestPressureMonitor_StateTransitions(t *testing.T) {
	t.Parallel()
	m := NewPressureMonitor(100, 0.85, 0.70)
	if got := m.State(); got != Normal {
		t.Fatalf("expected Normal, got %v", got)
	}
	m.Add(75)
	if got := m.State(); got != Pressure {
		t.Fatalf("expected Pressure at ratio 0.75, got %v", got)
	}
	m.Add(15)
	if got := m.State(); got != Critical {
		t.Fatalf("expected Critical at ratio 0.90, got %v", got)
	}
}

func TestPressureMonitor_HysteresisKeepsEvictingUntilLow(t *testing.T) {
	t.Parallel()
	m := NewPressureMonitor(100, 0.85, 0.70)
	m.Add(90) // Critical
	if !m.ShouldEvict() {
		t.Fatalf("expected ShouldEvict true entering Critical")
	}
	m.Sub(10) // ratio 0.80, still >= low(0.70): Pressure band, but latched Critical
	if !m.ShouldEvict() {
		t.Fatalf("expected ShouldEvict to remain true in hysteresis band")
	}
	m.Sub(15) // ratio 0.65, now below low
	if m.ShouldEvict() {
		t.Fatalf("expected ShouldEvict false once ratio drops below low")
	}
}

func TestPressureMonitor_SubNeverUnderflows(t *testing.T) {
	t.Parallel()
	m := NewPressureMonitor(100, 0.85, 0.70)
	m.Sub(50)
	if got := m.BytesUsed(); got != 0 {
		t.Fatalf("expected clamped 0, got %d", got)
	}
}

func TestPressureMonitor_Ratio(t *testing.T) {
	t.Parallel()
	m := NewPressureMonitor(200, 0.85, 0.70)
	m.Add(50)
	if got := m.Ratio(); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
}
