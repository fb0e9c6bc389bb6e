package observe

import "testing"

func TestHistogramBucketsAndOverflow(t *testing.T) {
	h := NewHistogram(0, 10, 5)
	h.Observe(0)
	h.Observe(2)
	h.Observe(9.9)
	h.Observe(-1)
	h.Observe(11)

	if h.Total() != 5 {
		t.Errorf("Total() = %d, want 5", h.Total())
	}
	if h.underflow != 1 {
		t.Errorf("underflow = %d, want 1", h.underflow)
	}
	if h.overflow != 1 {
		t.Errorf("overflow = %d, want 1", h.overflow)
	}
}

func TestHistogramDegenerateRange(t *testing.T) {
	h := NewHistogram(5, 5, 3)
	h.Observe(5)
	h.Observe(5)
	if h.Total() != 2 {
		t.Errorf("Total() = %d, want 2", h.Total())
	}
	if h.Counts()[0] != 2 {
		t.Errorf("bucket 0 = %d, want 2 (degenerate range collapses to one bucket)", h.Counts()[0])
	}
}

func TestRegistryTrackAndObserve(t *testing.T) {
	r := NewRegistry()
	r.Track("pt", 0, 100, 10)

	r.ObserveRaw("pt", 50)
	r.ObserveNormalized("pt", 0.5)

	if r.Raw("pt").Total() != 1 {
		t.Errorf("raw total = %d, want 1", r.Raw("pt").Total())
	}
	if r.Normalized("pt").Total() != 1 {
		t.Errorf("normalized total = %d, want 1", r.Normalized("pt").Total())
	}

	// Untracked key is a no-op, not a panic.
	r.ObserveRaw("missing", 1)
	if r.Raw("missing") != nil {
		t.Error("untracked key should have no histogram")
	}
}

func TestChunkStatsThroughput(t *testing.T) {
	s := ChunkStats{Rows: 1000, Branches: 4, FlatBytes: 1 << 20, ElapsedSeconds: 1}
	if got := s.MBPerSecond(); got != 1 {
		t.Errorf("MBPerSecond() = %v, want 1", got)
	}
	if got := s.KHz(); got != 1 {
		t.Errorf("KHz() = %v, want 1", got)
	}
}

func TestChunkStatsZeroElapsedIsSafe(t *testing.T) {
	s := ChunkStats{Rows: 10, FlatBytes: 100}
	if s.MBPerSecond() != 0 || s.KHz() != 0 {
		t.Error("zero elapsed time should yield zero throughput, not divide-by-zero")
	}
}
