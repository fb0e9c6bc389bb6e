// Package schema implements the Schema Inferencer (spec.md §4.D): a
// single-pass scan over the Columnar File Adapter's chunks that fills a
// Specs value. Grounded on DataReader.init()'s per-chunk accumulation loop
// in original_source/src/python/reader.py.
package schema

import (
	"io"

	"github.com/vkuznet/cevt/internal/columnar"
	"github.com/vkuznet/cevt/internal/ingesterr"
	"github.com/vkuznet/cevt/internal/specs"
)

// Options controls a single inference pass.
type Options struct {
	// Nevts bounds the number of rows scanned; -1 (or 0) means scan
	// everything, per spec.md §4.D step 3.
	Nevts int
	// ChunkSize is the Adapter chunk granularity to request.
	ChunkSize int
	// NaNSentinel is recorded into the resulting Specs.
	NaNSentinel float64
	// IdentifierKeys are excluded from fkeys/jkeys (they're never part of
	// the output vector).
	IdentifierKeys []string
	// Include/Exclude are glob-suffix branch selection patterns
	// (spec.md §4.B).
	Include []string
	Exclude []string
}

// Infer performs the first pass described in spec.md §4.D and returns a
// finalized Specs.
func Infer(h *columnar.Handle, opts Options) (*specs.Specs, error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	keys := h.MatchBranches(opts.Include, opts.Exclude)
	if len(keys) == 0 {
		return nil, ingesterr.New(ingesterr.SchemaError, "", errNoBranches)
	}

	identifiers := make(map[string]bool, len(opts.IdentifierKeys))
	for _, k := range opts.IdentifierKeys {
		identifiers[k] = true
	}

	s := specs.New(opts.NaNSentinel, opts.IdentifierKeys)

	src := h.Iterate(keys, chunkSize)
	seenFirst := false
	processed := 0

	for {
		chunk, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ingesterr.New(ingesterr.IoError, "", err)
		}

		for _, k := range keys {
			col, ok := chunk.Columns[k]
			if !ok {
				continue
			}

			cmin, cmax := col.MinMax()
			if cmax < cmin {
				// Empty branch in this chunk: spec.md §4.D failure policy
				// treats a column with no observed values as absent from
				// output — skip it entirely for this chunk without
				// corrupting any previously-seen range for the same key.
				continue
			}

			if !seenFirst {
				if identifiers[k] {
					// Identifier keys are tracked for range purposes but
					// never added to fkeys/jkeys (spec.md §4.E).
				} else if col.Kind == columnar.Jagged {
					s.JaggedKeys = append(s.JaggedKeys, k)
				} else {
					s.FlatKeys = append(s.FlatKeys, k)
				}
				s.Min[k] = cmin
				s.Max[k] = cmax
			} else {
				if existing, ok := s.Min[k]; !ok || cmin < existing {
					s.Min[k] = cmin
				}
				if existing, ok := s.Max[k]; !ok || cmax > existing {
					s.Max[k] = cmax
				}
			}

			if col.Kind == columnar.Jagged {
				if dim := col.MaxInnerLen(); dim > s.JDim[k] {
					s.JDim[k] = dim
				}
			}
		}
		seenFirst = true
		processed += chunk.NRows

		if opts.Nevts > 0 && processed > opts.Nevts {
			break
		}
	}

	for k := range s.JDim {
		if s.JDim[k] < 1 {
			s.JDim[k] = 1 // invariant 1: jdim[k] >= 1 for every jagged key.
		}
	}

	s.Finalize()
	return s, nil
}

type schemaError struct{}

func (*schemaError) Error() string { return "inclusion pattern matches zero branches" }

var errNoBranches = &schemaError{}
