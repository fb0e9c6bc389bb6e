// Package stream implements the Event Iterator (spec.md §4.F): a
// single-threaded, pull-based cursor over a columnar.Handle that produces
// one (x, mask, identifiers) row per call, refilling its chunk buffer on
// boundary crossings. Grounded on DataReader.next()'s cursor/chunk-refill
// loop in original_source/src/python/reader.py.
package stream

import (
	"io"

	"github.com/vkuznet/cevt/internal/columnar"
	"github.com/vkuznet/cevt/internal/ingesterr"
	"github.com/vkuznet/cevt/internal/observe"
	"github.com/vkuznet/cevt/internal/specs"
	"github.com/vkuznet/cevt/internal/vectorize"
)

// Options configures a Stream.
type Options struct {
	// ChunkSize is the Adapter chunk granularity (spec.md §4.F's C).
	ChunkSize int
	// Nevts bounds the total rows to consume; <= 0 means every row in the
	// handle.
	Nevts int
	// Branches selects which columns are fetched per chunk; nil means every
	// branch matched by the Specs' flat/jagged keys plus identifiers.
	Branches []string
	// IdentifierKeys names the columns surfaced through the identifiers side
	// channel rather than through (x, mask).
	IdentifierKeys []string
	// Histograms, when non-nil, is tracked for every flat/jagged key and
	// updated from each row's raw and normalized values (spec.md §4.H).
	Histograms *observe.Registry
}

// Stream is a one-shot Event Iterator: spec.md's Design Note "Generator
// protocol" splits the original reset-on-exhaustion object into this
// one-shot cursor plus an explicit Rewind, so exhaustion never silently
// resets state.
type Stream struct {
	h    *columnar.Handle
	s    *specs.Specs
	opts Options

	keys  []string
	n     int // total rows this stream will emit (N)
	idx   int // current row index
	cidx  int // intra-chunk cursor
	src   columnar.ChunkSource
	chunk columnar.Chunk
	done  bool
}

// New constructs a Stream over h using s for normalization and opts for
// chunking/projection. The row count N is min(h.RowCount(), opts.Nevts) when
// Nevts > 0, else h.RowCount().
func New(h *columnar.Handle, s *specs.Specs, opts Options) *Stream {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	opts.ChunkSize = chunkSize

	n := h.RowCount()
	if opts.Nevts > 0 && opts.Nevts < n {
		n = opts.Nevts
	}

	keys := opts.Branches
	if keys == nil {
		keys = make([]string, 0, len(s.FlatKeys)+len(s.JaggedKeys)+len(opts.IdentifierKeys))
		keys = append(keys, s.FlatKeys...)
		keys = append(keys, s.JaggedKeys...)
		keys = append(keys, opts.IdentifierKeys...)
	}

	if opts.Histograms != nil {
		const nbuckets = 32
		for _, k := range s.FlatKeys {
			opts.Histograms.Track(k, s.Min[k], s.Max[k], nbuckets)
		}
		for _, k := range s.JaggedKeys {
			opts.Histograms.Track(k, s.Min[k], s.Max[k], nbuckets)
		}
	}

	st := &Stream{h: h, s: s, opts: opts, keys: keys, n: n}
	st.src = h.Iterate(keys, chunkSize)
	return st
}

// Rewind resets the Stream to its initial state so it may be driven again
// from row 0. Per the Generator protocol design note, this is the only way
// to reuse an exhausted Stream — there is no silent auto-reset.
func (st *Stream) Rewind() {
	st.idx = 0
	st.cidx = 0
	st.chunk = columnar.Chunk{}
	st.done = false
	st.src = st.h.Iterate(st.keys, st.opts.ChunkSize)
}

// Len returns N, the total number of rows this Stream will emit.
func (st *Stream) Len() int { return st.n }

// Next implements spec.md §4.F's next(): refills the chunk buffer on
// boundary, extracts row cidx, emits identifiers, and calls the Row
// Vectorizer. Once idx == N, every further call fails with ExhaustedError.
func (st *Stream) Next() (x []float64, mask []uint8, identifiers map[string]float64, err error) {
	if st.done || st.idx >= st.n {
		st.done = true
		return nil, nil, nil, ingesterr.New(ingesterr.ExhaustedError, "", nil)
	}

	if st.cidx == 0 || st.cidx >= st.chunk.NRows {
		next, err := st.src.Next()
		if err == io.EOF {
			st.done = true
			return nil, nil, nil, ingesterr.New(ingesterr.ExhaustedError, "", nil)
		}
		if err != nil {
			return nil, nil, nil, ingesterr.New(ingesterr.IoError, "", err)
		}
		st.chunk = next
		st.cidx = 0
	}

	rec := vectorize.Record(st.chunk.Columns)
	identifiers = make(map[string]float64, len(st.opts.IdentifierKeys))
	for _, k := range st.opts.IdentifierKeys {
		col, ok := st.chunk.Columns[k]
		if !ok {
			continue
		}
		identifiers[k] = col.Flat[st.cidx]
	}

	x, mask, err = vectorize.Row(st.s, rec, st.cidx, st.opts.Histograms)
	if err != nil {
		return nil, nil, nil, err
	}

	st.cidx++
	st.idx++
	return x, mask, identifiers, nil
}
