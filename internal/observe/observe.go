// Package observe implements the Observability component (spec.md §4.H):
// per-branch raw/normalized histograms and per-chunk throughput reporting.
// Throughput lines use github.com/rs/zerolog, matching the structured
// logging style in seanblong-reposearch's internal/indexer package; no
// histogram/metrics library appears anywhere in the retrieved corpus, so
// bucketing itself is plain arithmetic.
package observe

import (
	"github.com/rs/zerolog/log"
)

// Histogram is a fixed-bucket counter over [min, max], per spec.md §4.H's
// "raw-value histogram and a normalized-value histogram" per branch key.
type Histogram struct {
	min, max            float64
	counts              []uint64
	underflow, overflow uint64
}

// NewHistogram returns a Histogram with nbuckets equal-width buckets
// spanning [min, max].
func NewHistogram(min, max float64, nbuckets int) *Histogram {
	if nbuckets <= 0 {
		nbuckets = 1
	}
	return &Histogram{min: min, max: max, counts: make([]uint64, nbuckets)}
}

// Observe records one value. Values outside [min, max] are counted in the
// under/overflow buckets rather than dropped.
func (h *Histogram) Observe(v float64) {
	if v < h.min {
		h.underflow++
		return
	}
	if v > h.max {
		h.overflow++
		return
	}
	span := h.max - h.min
	if span == 0 {
		h.counts[0]++
		return
	}
	idx := int(float64(len(h.counts)) * (v - h.min) / span)
	if idx >= len(h.counts) {
		idx = len(h.counts) - 1
	}
	if idx < 0 {
		idx = 0
	}
	h.counts[idx]++
}

// Counts returns the bucket counts, in bucket order.
func (h *Histogram) Counts() []uint64 { return h.counts }

// Total returns the number of values observed, including under/overflow.
func (h *Histogram) Total() uint64 {
	var total uint64
	for _, c := range h.counts {
		total += c
	}
	return total + h.underflow + h.overflow
}

// Registry owns the raw and normalized histograms for every branch key,
// updated during vectorization whenever a non-NaN value is written
// (spec.md §4.H). It is owned by the same goroutine that drives the
// Event Iterator (spec.md §5's shared-resource policy) and is not
// safe for concurrent use.
type Registry struct {
	raw        map[string]*Histogram
	normalized map[string]*Histogram
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		raw:        make(map[string]*Histogram),
		normalized: make(map[string]*Histogram),
	}
}

// Track registers raw and normalized histograms for key, bucketed over the
// column's discovered [min, max] and the normalized [0, 1] range
// respectively.
func (r *Registry) Track(key string, min, max float64, nbuckets int) {
	r.raw[key] = NewHistogram(min, max, nbuckets)
	r.normalized[key] = NewHistogram(0, 1, nbuckets)
}

// ObserveRaw records a pre-normalization value for key, a no-op if key was
// never registered via Track.
func (r *Registry) ObserveRaw(key string, v float64) {
	if h, ok := r.raw[key]; ok {
		h.Observe(v)
	}
}

// ObserveNormalized records a post-normalization value for key.
func (r *Registry) ObserveNormalized(key string, u float64) {
	if h, ok := r.normalized[key]; ok {
		h.Observe(u)
	}
}

// Raw returns the raw-value histogram for key, or nil if untracked.
func (r *Registry) Raw(key string) *Histogram { return r.raw[key] }

// Normalized returns the normalized-value histogram for key, or nil if
// untracked.
func (r *Registry) Normalized(key string) *Histogram { return r.normalized[key] }

// Export logs one summary line per tracked key, at shutdown per spec.md
// §4.H ("Exported at shutdown").
func (r *Registry) Export() {
	for key, h := range r.raw {
		log.Info().
			Str("branch", key).
			Uint64("count", h.Total()).
			Uint64("underflow", h.underflow).
			Uint64("overflow", h.overflow).
			Msg("raw histogram")
	}
	for key, h := range r.normalized {
		log.Info().
			Str("branch", key).
			Uint64("count", h.Total()).
			Msg("normalized histogram")
	}
}

// ChunkStats is one chunk's throughput sample, per spec.md §4.H's
// "(rows, branches, bytes, elapsed_seconds)".
type ChunkStats struct {
	Rows           int
	Branches       int
	FlatBytes      int64
	JaggedBytes    int64
	ElapsedSeconds float64
}

// Bytes returns the chunk's total payload size.
func (c ChunkStats) Bytes() int64 { return c.FlatBytes + c.JaggedBytes }

// MBPerSecond returns the chunk's throughput in megabytes/second.
func (c ChunkStats) MBPerSecond() float64 {
	if c.ElapsedSeconds <= 0 {
		return 0
	}
	return float64(c.Bytes()) / (1 << 20) / c.ElapsedSeconds
}

// KHz returns the chunk's throughput in thousands of rows/second.
func (c ChunkStats) KHz() float64 {
	if c.ElapsedSeconds <= 0 {
		return 0
	}
	return float64(c.Rows) / 1000 / c.ElapsedSeconds
}

// LogChunk emits a one-line throughput summary for a single chunk.
func LogChunk(s ChunkStats) {
	log.Info().
		Int("rows", s.Rows).
		Int("branches", s.Branches).
		Int64("bytes", s.Bytes()).
		Float64("elapsed_seconds", s.ElapsedSeconds).
		Float64("mb_per_second", s.MBPerSecond()).
		Float64("khz", s.KHz()).
		Msg("chunk processed")
}

// LogFinal emits the run's closing summary line (spec.md §4.H's exit
// surface: "final line with total rows, kHz, total seconds").
func LogFinal(totalRows int, elapsedSeconds float64) {
	khz := 0.0
	if elapsedSeconds > 0 {
		khz = float64(totalRows) / 1000 / elapsedSeconds
	}
	log.Info().
		Int("total_rows", totalRows).
		Float64("khz", khz).
		Float64("total_seconds", elapsedSeconds).
		Msg("run complete")
}
