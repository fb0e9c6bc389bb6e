// Package batch implements the Batch Generator (spec.md §4.G): it wraps an
// Event Iterator, groups consecutive rows into (X, M) matrices, and
// auto-infers/auto-persists a Specs sidecar when none is supplied. Grounded
// on DataGenerator.__next__()'s batching loop in
// original_source/src/python/tfaas.py.
package batch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/vkuznet/cevt/internal/columnar"
	"github.com/vkuznet/cevt/internal/ingesterr"
	"github.com/vkuznet/cevt/internal/observe"
	"github.com/vkuznet/cevt/internal/schema"
	"github.com/vkuznet/cevt/internal/specs"
	"github.com/vkuznet/cevt/internal/stream"
)

var errRedisStoreMissingAddrOrKey = fmt.Errorf("redis-addr and redis-key are required when specs-store=redis")

// Options configures a Generator, mirroring spec.md §4.G's option table.
type Options struct {
	// BatchSize is rows per produced batch (default 256).
	BatchSize int
	// Nevts is an upper bound on rows consumed; <= 0 means all.
	Nevts int
	// ChunkSize is the Adapter chunk granularity (default 1000).
	ChunkSize int
	// Branch names the tree to open (default "Events").
	Branch string
	// SelectedBranches/ExcludeBranches project which branches participate
	// in schema inference when no SpecsPath is supplied.
	SelectedBranches []string
	ExcludeBranches  []string
	// NaNSentinel is written to x for NaN/padding.
	NaNSentinel float64
	// IdentifierKeys are excluded from (x, mask) and surfaced separately.
	IdentifierKeys []string
	// SpecsPath is an optional path to a prebuilt Specs sidecar; when empty,
	// a sidecar named after the input file, in the input file's directory, is
	// loaded if present, else inferred and persisted there. Only used when SpecsStore is "file" (the
	// default).
	SpecsPath string
	// SpecsStore selects the Specs Store backend: "file" (default) or
	// "redis". RedisAddr/RedisKey are required when "redis" is selected.
	SpecsStore string
	RedisAddr  string
	RedisKey   string
	// Histograms, when non-nil, receives per-branch raw/normalized
	// histograms updated as the Generator yields rows (spec.md §4.H).
	Histograms *observe.Registry
}

// Generator is the Batch Generator: it owns one Stream and groups its rows
// into fixed-size batches.
type Generator struct {
	h    *columnar.Handle
	s    *specs.Specs
	st   *stream.Stream
	opts Options
}

// Open opens path, resolves a Specs (load, or infer-then-persist), and
// returns a ready Generator.
func Open(path string, opts Options) (*Generator, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 256
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	branch := opts.Branch
	if branch == "" {
		branch = "Events"
	}

	h, err := columnar.Open(path, branch)
	if err != nil {
		return nil, err
	}

	var store specs.Store
	switch opts.SpecsStore {
	case "redis":
		if opts.RedisAddr == "" || opts.RedisKey == "" {
			return nil, ingesterr.New(ingesterr.ConfigError, "specs-store", errRedisStoreMissingAddrOrKey)
		}
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		store = specs.NewRedisStore(client, opts.RedisKey, 0, opts.NaNSentinel, opts.IdentifierKeys)
	default:
		specsPath := opts.SpecsPath
		if specsPath == "" {
			specsPath = filepath.Join(filepath.Dir(path), specs.SidecarName(path))
		}
		store = specs.NewFileStore(specsPath, opts.NaNSentinel, opts.IdentifierKeys)
	}

	ctx := context.Background()
	var s *specs.Specs
	if store.Exists(ctx) {
		s, err = store.Load(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		s, err = schema.Infer(h, schema.Options{
			Nevts:          opts.Nevts,
			ChunkSize:      opts.ChunkSize,
			NaNSentinel:    opts.NaNSentinel,
			IdentifierKeys: opts.IdentifierKeys,
			Include:        opts.SelectedBranches,
			Exclude:        opts.ExcludeBranches,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Save(ctx, s); err != nil {
			return nil, err
		}
	}

	st := stream.New(h, s, stream.Options{
		ChunkSize:      opts.ChunkSize,
		Nevts:          opts.Nevts,
		IdentifierKeys: opts.IdentifierKeys,
		Histograms:     opts.Histograms,
	})

	return &Generator{h: h, s: s, st: st, opts: opts}, nil
}

// Specs returns the schema this Generator vectorizes against.
func (g *Generator) Specs() *specs.Specs { return g.s }

// Length returns ⌊nevts / batch_size⌋ per spec.md §4.G, where nevts is the
// effective (possibly Options.Nevts-bounded) row count of the underlying
// Stream.
func (g *Generator) Length() int {
	return g.st.Len() / g.opts.BatchSize
}

// NextBatch fills one (X, M) pair of shape [batch_size, L], consuming rows
// in strictly ascending order from the Stream. A batch shorter than
// batch_size is never returned: on exhaustion mid-batch the partial tail is
// discarded, the Stream is reset via Rewind so the Generator is ready for a
// fresh pass, and io.EOF is returned immediately, the same as the
// exact-multiple case.
func (g *Generator) NextBatch() (X [][]float64, M [][]uint8, err error) {
	X = make([][]float64, 0, g.opts.BatchSize)
	M = make([][]uint8, 0, g.opts.BatchSize)

	for i := 0; i < g.opts.BatchSize; i++ {
		x, mask, _, err := g.st.Next()
		if err != nil {
			if ingestErr, ok := err.(*ingesterr.Error); ok && ingestErr.Kind == ingesterr.ExhaustedError {
				g.st.Rewind()
				return nil, nil, io.EOF
			}
			return nil, nil, err
		}
		X = append(X, x)
		M = append(M, mask)
	}
	return X, M, nil
}
