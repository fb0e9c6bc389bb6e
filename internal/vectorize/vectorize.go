// Package vectorize implements the Row Vectorizer (spec.md §4.E): given a
// Specs and one record, it produces the flat normalized (x, mask) pair.
// Grounded on DataReader.next()'s flat-then-jagged write loop in
// original_source/src/python/reader.py.
package vectorize

import (
	"math"

	"github.com/vkuznet/cevt/internal/columnar"
	"github.com/vkuznet/cevt/internal/ingesterr"
	"github.com/vkuznet/cevt/internal/observe"
	"github.com/vkuznet/cevt/internal/specs"
)

// Record is the Event Iterator's current chunk of columns, keyed by branch
// name; Row picks one event out of it by row index.
type Record map[string]columnar.Column

// RowIndex names which row within each Record's columns to vectorize (the
// columns already cover an entire chunk; Row reads index i out of each).
type RowIndex = int

// Row produces (x, mask) for row index i of rec, per spec.md §4.E's
// algorithm: flat block first (sorted flat keys), then jagged block
// (sorted jagged keys, each occupying jdim[k] contiguous positions). When
// reg is non-nil, every non-NaN raw and normalized value written is also
// recorded into reg's per-branch histograms (spec.md §4.H).
func Row(s *specs.Specs, rec Record, i RowIndex, reg *observe.Registry) (x []float64, mask []uint8, err error) {
	width := s.Width()
	x = make([]float64, width)
	mask = make([]uint8, width)

	pos := 0
	for _, k := range s.FlatKeys {
		col, ok := rec[k]
		if !ok {
			return nil, nil, ingesterr.New(ingesterr.RangeError, k, nil)
		}
		v := col.Flat[i]
		x[pos] = s.Normalize(k, v)
		if isNaN(v) {
			mask[pos] = 0
		} else {
			mask[pos] = 1
			if reg != nil {
				reg.ObserveRaw(k, v)
				reg.ObserveNormalized(k, x[pos])
			}
		}
		pos++
	}

	for _, k := range s.JaggedKeys {
		dim := s.JDim[k]
		col, ok := rec[k]
		var inner []float64
		if ok {
			inner = col.Row(i)
		}
		for j := 0; j < dim; j++ {
			v := math.NaN()
			if j < len(inner) {
				v = inner[j]
			}
			x[pos+j] = s.Normalize(k, v)
			if isNaN(v) {
				mask[pos+j] = 0
			} else {
				mask[pos+j] = 1
				if reg != nil {
					reg.ObserveRaw(k, v)
					reg.ObserveNormalized(k, x[pos+j])
				}
			}
		}
		pos += dim
	}

	return x, mask, nil
}

func isNaN(f float64) bool { return f != f }
