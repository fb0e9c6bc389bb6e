package batch

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeContainer(t *testing.T, path string, rowCount int, flat map[string][]float64, jagged map[string][][]float64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := func(v interface{}) {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	w([4]byte{'C', 'E', 'V', 'T'})
	w(uint16(1))
	w(uint16(len("Events")))
	if _, err := f.Write([]byte("Events")); err != nil {
		t.Fatal(err)
	}
	w(uint32(rowCount))
	w(uint16(len(flat) + len(jagged)))

	writeHeader := func(name string, kind uint8) {
		w(uint16(len(name)))
		if _, err := f.Write([]byte(name)); err != nil {
			t.Fatal(err)
		}
		w(kind)
	}
	for name := range flat {
		writeHeader(name, 0)
	}
	for name := range jagged {
		writeHeader(name, 1)
	}
	for _, vals := range flat {
		for _, v := range vals {
			w(v)
		}
	}
	for _, rows := range jagged {
		offsets := make([]int32, rowCount+1)
		var flatVals []float64
		for i, row := range rows {
			offsets[i+1] = offsets[i] + int32(len(row))
			flatVals = append(flatVals, row...)
		}
		for _, o := range offsets {
			w(uint32(o))
		}
		for _, v := range flatVals {
			w(v)
		}
	}
}

func buildFixture(t *testing.T, nrows int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "events.cevt")

	pt := make([]float64, nrows)
	jets := make([][]float64, nrows)
	for i := 0; i < nrows; i++ {
		pt[i] = float64(i)
		jets[i] = []float64{float64(i), float64(i + 1)}
	}
	writeContainer(t, path, nrows,
		map[string][]float64{"pt": pt},
		map[string][][]float64{"jets": jets},
	)
	return path
}

func TestGeneratorS5BatchShapes(t *testing.T) {
	path := buildFixture(t, 10)
	g, err := Open(path, Options{BatchSize: 4, ChunkSize: 3, NaNSentinel: -1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if g.Length() != 2 {
		t.Errorf("Length() = %d, want 2 (floor(10/4))", g.Length())
	}

	X, M, err := g.NextBatch()
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(X) != 4 || len(M) != 4 {
		t.Fatalf("batch size = %d/%d, want 4/4", len(X), len(M))
	}
	width := g.Specs().Width()
	for i := range X {
		if len(X[i]) != width || len(M[i]) != width {
			t.Errorf("row %d: len(x)=%d len(m)=%d, want %d", i, len(X[i]), len(M[i]), width)
		}
	}
}

func TestGeneratorAutoInfersAndPersistsSpecs(t *testing.T) {
	path := buildFixture(t, 6)
	sidecarPath := filepath.Join(filepath.Dir(path), "specs-events.json")

	if _, err := os.Stat(sidecarPath); err == nil {
		t.Fatal("sidecar should not exist before Open")
	}

	g, err := Open(path, Options{BatchSize: 2, ChunkSize: 2, NaNSentinel: -1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := os.Stat(sidecarPath); err != nil {
		t.Fatalf("sidecar should exist after auto-infer: %v", err)
	}
	if len(g.Specs().FlatKeys) == 0 && len(g.Specs().JaggedKeys) == 0 {
		t.Error("auto-inferred specs has no keys")
	}
}

func TestGeneratorExhaustionDiscardsPartialTailAndSignalsEOF(t *testing.T) {
	path := buildFixture(t, 4)
	g, err := Open(path, Options{BatchSize: 3, ChunkSize: 2, NaNSentinel: -1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	X, _, err := g.NextBatch()
	if err != nil {
		t.Fatalf("first NextBatch: %v", err)
	}
	if len(X) != 3 {
		t.Fatalf("first batch size = %d, want 3", len(X))
	}

	// Only 1 row remains, short of a full batch: the tail is discarded and
	// io.EOF is returned immediately, the Stream already rewound internally.
	X2, M2, err := g.NextBatch()
	if err != io.EOF {
		t.Fatalf("second NextBatch err = %v, want io.EOF", err)
	}
	if X2 != nil || M2 != nil {
		t.Errorf("second NextBatch = (%v, %v), want (nil, nil) on EOF", X2, M2)
	}

	X3, _, err := g.NextBatch()
	if err != nil {
		t.Fatalf("NextBatch after reset: %v", err)
	}
	if len(X3) != 3 {
		t.Errorf("post-reset batch size = %d, want 3 (cursor rewound)", len(X3))
	}
}

func TestOpenRejectsRedisStoreWithoutAddrOrKey(t *testing.T) {
	path := buildFixture(t, 2)
	_, err := Open(path, Options{BatchSize: 1, ChunkSize: 2, NaNSentinel: -1, SpecsStore: "redis"})
	if err == nil {
		t.Fatal("expected ConfigError when specs-store=redis lacks redis-addr/redis-key")
	}
}

func TestGeneratorExactMultipleYieldsEOF(t *testing.T) {
	path := buildFixture(t, 6)
	g, err := Open(path, Options{BatchSize: 3, ChunkSize: 2, NaNSentinel: -1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 2; i++ {
		X, _, err := g.NextBatch()
		if err != nil {
			t.Fatalf("NextBatch %d: %v", i, err)
		}
		if len(X) != 3 {
			t.Fatalf("NextBatch %d size = %d, want 3", i, len(X))
		}
	}

	_, _, err = g.NextBatch()
	if err != io.EOF {
		t.Fatalf("NextBatch after exact-multiple exhaustion err = %v, want io.EOF", err)
	}

	X, _, err := g.NextBatch()
	if err != nil {
		t.Fatalf("NextBatch after reset: %v", err)
	}
	if len(X) != 3 {
		t.Errorf("post-reset batch size = %d, want 3", len(X))
	}
}
