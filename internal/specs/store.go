package specs

import (
	"context"
	"fmt"
	"os"

	"github.com/vkuznet/cevt/internal/ingesterr"
)

// Store persists and reloads a Specs value. save(specs, path)/load(path)
// from spec.md §4.C, generalized to a context-aware interface so a
// networked backend (RedisStore) fits the same contract as the local file
// backend.
type Store interface {
	Save(ctx context.Context, s *Specs) error
	Load(ctx context.Context) (*Specs, error)
	// Exists reports whether a specs artifact is already present, without
	// the cost of loading and parsing it.
	Exists(ctx context.Context) bool
}

// FileStore is the default Store: a local self-describing JSON sidecar,
// grounded on internal/index.Index.Flush's json.MarshalIndent +
// os.WriteFile pattern.
type FileStore struct {
	Path           string
	NaNSentinel    float64
	IdentifierKeys []string
}

// NewFileStore returns a Store backed by a local JSON file at path.
func NewFileStore(path string, nanSentinel float64, identifierKeys []string) *FileStore {
	return &FileStore{Path: path, NaNSentinel: nanSentinel, IdentifierKeys: identifierKeys}
}

func (fs *FileStore) Save(_ context.Context, s *Specs) error {
	data, err := marshal(s)
	if err != nil {
		return ingesterr.New(ingesterr.SpecsError, fs.Path, err)
	}
	if err := os.WriteFile(fs.Path, data, 0o644); err != nil {
		return ingesterr.New(ingesterr.IoError, fs.Path, err)
	}
	return nil
}

func (fs *FileStore) Load(_ context.Context) (*Specs, error) {
	data, err := os.ReadFile(fs.Path)
	if err != nil {
		return nil, ingesterr.New(ingesterr.SpecsError, fs.Path, err)
	}
	s, err := unmarshal(data, fs.NaNSentinel, fs.IdentifierKeys)
	if err != nil {
		return nil, fmt.Errorf("load specs %s: %w", fs.Path, err)
	}
	return s, nil
}

func (fs *FileStore) Exists(_ context.Context) bool {
	_, err := os.Stat(fs.Path)
	return err == nil
}

// SidecarName derives the default specs sidecar file name (without any
// directory part) for an input file,
// matching the teacher's convention of deriving one artifact path from
// another (index.go's hnsw.bin/meta.json siblings) and the original
// Python's "specs-<base>.json" naming in tfaas.py's DataGenerator.
func SidecarName(inputPath string) string {
	base := inputPath
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			base = base[:i]
			break
		}
	}
	return fmt.Sprintf("specs-%s.json", base)
}
