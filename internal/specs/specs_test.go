package specs

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func TestNormalizeS1(t *testing.T) {
	s := New(math.NaN(), nil)
	s.FlatKeys = []string{"a", "b"}
	s.Min["a"], s.Max["a"] = 0, 10
	s.Min["b"], s.Max["b"] = 1, 2
	if got := s.Normalize("a", 5); got != 0.5 {
		t.Errorf("normalize a=5: got %v, want 0.5", got)
	}
	if got := s.Normalize("b", 1.5); got != 0.5 {
		t.Errorf("normalize b=1.5: got %v, want 0.5", got)
	}
}

func TestNormalizeDegenerateRangeS4(t *testing.T) {
	s := New(-999, nil)
	s.Min["a"], s.Max["a"] = 7, 7
	if got := s.Normalize("a", 7); got != 7 {
		t.Errorf("degenerate range should be identity: got %v, want 7", got)
	}
}

func TestNormalizeNaNS3(t *testing.T) {
	s := New(-999, nil)
	s.Min["a"], s.Max["a"] = 0, 10
	if got := s.Normalize("a", math.NaN()); got != -999 {
		t.Errorf("NaN should map to sentinel: got %v", got)
	}
}

func TestDenormalizeRoundTrip(t *testing.T) {
	s := New(-999, nil)
	s.Min["a"], s.Max["a"] = 2, 12
	for _, v := range []float64{2, 5, 12, 7.5} {
		u := s.Normalize("a", v)
		got := s.Denormalize("a", u)
		if math.Abs(got-v) > 1e-9 {
			t.Errorf("denormalize(normalize(%v)) = %v", v, got)
		}
	}
}

func TestWidth(t *testing.T) {
	s := New(0, nil)
	s.FlatKeys = []string{"a", "b"}
	s.JaggedKeys = []string{"j1", "j2"}
	s.JDim["j1"] = 3
	s.JDim["j2"] = 5
	if got := s.Width(); got != 2+3+5 {
		t.Errorf("Width = %d, want 10", got)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "specs-test.json")

	s := New(math.NaN(), []string{"run", "event"})
	s.FlatKeys = []string{"b", "a"}
	s.JaggedKeys = []string{"j"}
	s.Min = map[string]float64{"a": 0, "b": 1, "j": -5}
	s.Max = map[string]float64{"a": 10, "b": 2, "j": 5}
	s.JDim = map[string]int{"j": 4}
	s.Finalize()

	store := NewFileStore(path, math.NaN(), []string{"run", "event"})
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.Exists(context.Background()) {
		t.Fatal("Exists should be true after Save")
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !Equal(s, loaded) {
		t.Errorf("round-trip mismatch:\nsaved=%+v\nloaded=%+v", s, loaded)
	}
}

func TestSidecarName(t *testing.T) {
	cases := map[string]string{
		"/data/run2017.cevt": "specs-run2017.json",
		"events.cevt":         "specs-events.json",
	}
	for in, want := range cases {
		if got := SidecarName(in); got != want {
			t.Errorf("SidecarName(%q) = %q, want %q", in, got, want)
		}
	}
}
