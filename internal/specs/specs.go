// Package specs implements the Specs Store (spec.md §4.C and §6): the
// schema artifact derived from a first pass over a columnar file, pinned
// to a persistent sidecar so repeated passes are single-pass.
package specs

import (
	"encoding/json"
	"sort"

	"github.com/vkuznet/cevt/internal/ingesterr"
)

// Specs is the immutable schema artifact described in spec.md §3.
type Specs struct {
	FlatKeys       []string           `json:"fkeys"`
	JaggedKeys     []string           `json:"jkeys"`
	IdentifierKeys []string           `json:"-"`
	Min            map[string]float64 `json:"minv"`
	Max            map[string]float64 `json:"maxv"`
	JDim           map[string]int     `json:"jdim"`
	NaNNormalized  map[string]float64 `json:"nans"`
	NaNSentinel    float64            `json:"-"`
}

// DefaultIdentifierKeys matches spec.md §6's default identifier triple.
var DefaultIdentifierKeys = []string{"run", "event", "luminosityBlock"}

// New returns an empty Specs ready for population by the Schema Inferencer.
func New(nanSentinel float64, identifierKeys []string) *Specs {
	if identifierKeys == nil {
		identifierKeys = DefaultIdentifierKeys
	}
	return &Specs{
		IdentifierKeys: identifierKeys,
		Min:            make(map[string]float64),
		Max:            make(map[string]float64),
		JDim:           make(map[string]int),
		NaNNormalized:  make(map[string]float64),
		NaNSentinel:    nanSentinel,
	}
}

// Normalize applies the affine map (v-min)/(max-min), with the NaN and
// degenerate-range carve-outs from spec.md §4.E.3.
func (s *Specs) Normalize(key string, v float64) float64 {
	if isNaN(v) {
		return s.NaNSentinel
	}
	minv := s.Min[key]
	maxv := s.Max[key]
	if maxv == minv {
		return v
	}
	return (v - minv) / (maxv - minv)
}

// Denormalize is the informational inverse of Normalize (spec.md §4.E.4).
func (s *Specs) Denormalize(key string, u float64) float64 {
	if u == 0 {
		return s.NaNSentinel
	}
	minv := s.Min[key]
	maxv := s.Max[key]
	return u*(maxv-minv) + minv
}

// Width returns L = |flat_keys| + Σ jdim[k], the length of every emitted
// row vector and mask (spec.md invariant 3).
func (s *Specs) Width() int {
	w := len(s.FlatKeys)
	for _, k := range s.JaggedKeys {
		w += s.JDim[k]
	}
	return w
}

// Finalize sorts the key lists and computes NaNNormalized for every branch,
// per spec.md §4.D ("After termination: compute nan_normalized[k] ...
// finalize sorted key lists").
func (s *Specs) Finalize() {
	sort.Strings(s.FlatKeys)
	sort.Strings(s.JaggedKeys)
	for _, k := range s.FlatKeys {
		s.NaNNormalized[k] = s.Normalize(k, 0)
	}
	for _, k := range s.JaggedKeys {
		s.NaNNormalized[k] = s.Normalize(k, 0)
	}
}

// Equal reports whether two Specs describe the same schema, used to verify
// the round-trip property in spec.md §8 invariant 7.
func Equal(a, b *Specs) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !stringsEqual(a.FlatKeys, b.FlatKeys) || !stringsEqual(a.JaggedKeys, b.JaggedKeys) {
		return false
	}
	if !floatMapEqual(a.Min, b.Min) || !floatMapEqual(a.Max, b.Max) || !floatMapEqual(a.NaNNormalized, b.NaNNormalized) {
		return false
	}
	if len(a.JDim) != len(b.JDim) {
		return false
	}
	for k, v := range a.JDim {
		if b.JDim[k] != v {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func floatMapEqual(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || bv != v {
			return false
		}
	}
	return true
}

func isNaN(f float64) bool { return f != f }

// wireFormat mirrors the sidecar JSON shape from spec.md §6 exactly: fkeys,
// jkeys, minv, maxv, jdim, nans. Kept separate from Specs so IdentifierKeys
// and NaNSentinel (which are run configuration, not discovered schema)
// never leak into the serialized artifact.
type wireFormat struct {
	FlatKeys   []string           `json:"fkeys"`
	JaggedKeys []string           `json:"jkeys"`
	Min        map[string]float64 `json:"minv"`
	Max        map[string]float64 `json:"maxv"`
	JDim       map[string]int     `json:"jdim"`
	NaN        map[string]float64 `json:"nans"`
}

func toWire(s *Specs) wireFormat {
	return wireFormat{
		FlatKeys:   s.FlatKeys,
		JaggedKeys: s.JaggedKeys,
		Min:        s.Min,
		Max:        s.Max,
		JDim:       s.JDim,
		NaN:        s.NaNNormalized,
	}
}

func fromWire(w wireFormat, nanSentinel float64, identifierKeys []string) *Specs {
	if identifierKeys == nil {
		identifierKeys = DefaultIdentifierKeys
	}
	return &Specs{
		FlatKeys:       w.FlatKeys,
		JaggedKeys:     w.JaggedKeys,
		IdentifierKeys: identifierKeys,
		Min:            w.Min,
		Max:            w.Max,
		JDim:           w.JDim,
		NaNNormalized:  w.NaN,
		NaNSentinel:    nanSentinel,
	}
}

func marshal(s *Specs) ([]byte, error) {
	return json.MarshalIndent(toWire(s), "", "  ")
}

func unmarshal(data []byte, nanSentinel float64, identifierKeys []string) (*Specs, error) {
	var w wireFormat
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ingesterr.New(ingesterr.SpecsError, "", err)
	}
	if w.FlatKeys == nil && w.JaggedKeys == nil {
		return nil, ingesterr.New(ingesterr.SpecsError, "", errEmptySpecs)
	}
	return fromWire(w, nanSentinel, identifierKeys), nil
}

var errEmptySpecs = &emptySpecsError{}

type emptySpecsError struct{}

func (*emptySpecsError) Error() string { return "specs sidecar missing fkeys/jkeys" }
