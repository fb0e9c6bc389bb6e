// Package columnar implements the Columnar File Adapter (spec.md §4.B): it
// opens a self-contained columnar container, enumerates its branches, and
// iterates chunks of records as typed column arrays.
//
// No ROOT/uproot-equivalent reader exists anywhere in the Go ecosystem, so
// this package defines its own binary container format rather than
// reading an actual ROOT file. The wire codec is adapted from
// internal/hnsw/persist.go's magic-header / versioned / little-endian
// binary.Write-Read idiom (see DESIGN.md) — not invented from scratch.
package columnar

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/vkuznet/cevt/internal/ingesterr"
)

// magic identifies a columnar event container file.
var magic = [4]byte{'C', 'E', 'V', 'T'}

const formatVersion = uint16(1)

// Kind distinguishes a flat scalar branch from a jagged vector branch.
type Kind uint8

const (
	// Flat is a single floating-point value per event.
	Flat Kind = 0
	// Jagged is a variable-length numeric sequence per event.
	Jagged Kind = 1
)

func (k Kind) String() string {
	if k == Jagged {
		return "JAGGED"
	}
	return "FLAT"
}

// Column is a tagged union of a flat or jagged branch's full materialized
// contents, per Design Note "Mixed scalar/sequence variant": jagged data is
// encoded as a flat value slice plus a per-row offsets slice, never as a
// slice of slices.
type Column struct {
	Kind Kind
	// Flat holds one value per row when Kind == Flat.
	Flat []float64
	// Values holds the concatenated inner elements of every row when
	// Kind == Jagged.
	Values []float64
	// Offsets has len(rows)+1 entries; row i's inner slice is
	// Values[Offsets[i]:Offsets[i+1]] when Kind == Jagged.
	Offsets []int32
}

// Len returns the number of rows represented by the column.
func (c Column) Len() int {
	if c.Kind == Flat {
		return len(c.Flat)
	}
	if len(c.Offsets) == 0 {
		return 0
	}
	return len(c.Offsets) - 1
}

// Row returns the value(s) for row i: a single-element slice for a flat
// column, or the inner slice for a jagged column.
func (c Column) Row(i int) []float64 {
	if c.Kind == Flat {
		return c.Flat[i : i+1]
	}
	return c.Values[c.Offsets[i]:c.Offsets[i+1]]
}

// MinMax reduces a column to its inclusive (min, max) over all non-NaN
// values. An empty or all-NaN column yields (+Inf, -Inf) so that
// max < min signals "empty" per spec.md §4.D failure policy.
func (c Column) MinMax() (float64, float64) {
	minv, maxv := posInf, negInf
	values := c.Flat
	if c.Kind == Jagged {
		values = c.Values
	}
	for _, v := range values {
		if isNaN(v) {
			continue
		}
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}
	return minv, maxv
}

// MaxInnerLen returns the longest per-row inner sequence in a jagged column.
func (c Column) MaxInnerLen() int {
	if c.Kind != Jagged {
		return 0
	}
	max := 0
	for i := 0; i < c.Len(); i++ {
		n := int(c.Offsets[i+1] - c.Offsets[i])
		if n > max {
			max = n
		}
	}
	return max
}

var (
	posInf = math.Inf(1)
	negInf = math.Inf(-1)
)

func isNaN(f float64) bool { return f != f }

// Chunk is a struct-of-arrays slab of consecutive rows, keyed by branch name.
type Chunk struct {
	Columns map[string]Column
	// NRows is authoritative even if Columns is empty (e.g. branch filtered
	// away by selection, but row count still known from the container).
	NRows int
}

// branchHeader describes one branch's on-disk layout.
type branchHeader struct {
	Name string
	Kind Kind
}

// Handle represents an opened columnar container.
type Handle struct {
	path     string
	treeName string
	rowCount int
	branches []branchHeader
	// data holds the fully decoded columns, keyed by name. The reference
	// container format used by this engine is small scientific data
	// (megabytes to low gigabytes per spec.md's target), so the adapter
	// decodes the whole file once at Open and slices chunks out of memory
	// rather than re-parsing the binary layout on every Iterate call.
	data map[string]Column
}

// Open opens a columnar container at locator and verifies branchName names
// the tree held within it (containers produced by this package hold a
// single tree, whose name is itself a header field; branchName is checked
// against that field, matching the Adapter contract's
// open(locator, branch_name) and its IoError-on-absent-branch failure mode).
func Open(locatorPath, branchName string) (*Handle, error) {
	f, err := os.Open(locatorPath)
	if err != nil {
		return nil, ingesterr.New(ingesterr.IoError, locatorPath, err)
	}
	defer f.Close()

	r := &binReader{r: f}

	var gotMagic [4]byte
	r.read(&gotMagic)
	if gotMagic != magic {
		return nil, ingesterr.New(ingesterr.IoError, locatorPath, fmt.Errorf("not a columnar container (bad magic)"))
	}
	version := r.readU16()
	if version != formatVersion {
		return nil, ingesterr.New(ingesterr.IoError, locatorPath, fmt.Errorf("unsupported container version %d", version))
	}
	treeNameLen := int(r.readU16())
	treeNameBytes := make([]byte, treeNameLen)
	r.readBytes(treeNameBytes)
	treeName := string(treeNameBytes)
	rowCount := int(r.readU32())
	branchCount := int(r.readU16())
	if r.err != nil {
		return nil, ingesterr.New(ingesterr.IoError, locatorPath, r.err)
	}
	if treeName != branchName {
		return nil, ingesterr.New(ingesterr.IoError, locatorPath, fmt.Errorf("tree %q not found (container holds %q)", branchName, treeName))
	}

	headers := make([]branchHeader, branchCount)
	for i := range headers {
		nameLen := int(r.readU16())
		nameBytes := make([]byte, nameLen)
		r.readBytes(nameBytes)
		kind := Kind(r.readU8())
		headers[i] = branchHeader{Name: string(nameBytes), Kind: kind}
	}
	if r.err != nil {
		return nil, ingesterr.New(ingesterr.IoError, locatorPath, r.err)
	}

	data := make(map[string]Column, len(headers))
	for _, h := range headers {
		switch h.Kind {
		case Flat:
			vals := make([]float64, rowCount)
			for i := range vals {
				vals[i] = r.readF64()
			}
			data[h.Name] = Column{Kind: Flat, Flat: vals}
		case Jagged:
			offsets := make([]int32, rowCount+1)
			for i := range offsets {
				offsets[i] = int32(r.readU32())
			}
			n := 0
			if rowCount > 0 {
				n = int(offsets[rowCount])
			}
			vals := make([]float64, n)
			for i := range vals {
				vals[i] = r.readF64()
			}
			data[h.Name] = Column{Kind: Jagged, Values: vals, Offsets: offsets}
		}
	}
	if r.err != nil {
		return nil, ingesterr.New(ingesterr.IoError, locatorPath, r.err)
	}

	return &Handle{path: locatorPath, treeName: treeName, rowCount: rowCount, branches: headers, data: data}, nil
}

// RowCount returns the total number of records in the container.
func (h *Handle) RowCount() int { return h.rowCount }

// BranchNames returns every branch name present in the container, in
// on-disk (insertion) order.
func (h *Handle) BranchNames() []string {
	names := make([]string, len(h.branches))
	for i, b := range h.branches {
		names[i] = b.Name
	}
	return names
}

// Classify returns the Kind of a named branch.
func (h *Handle) Classify(name string) (Kind, bool) {
	c, ok := h.data[name]
	return c.Kind, ok
}

// MatchBranches expands a selection/exclusion pattern list against the
// container's branch names. A pattern ending in "*" matches any branch
// starting with the literal prefix; otherwise it is an exact match.
// Exclusion filtering (when exclude is non-nil) is applied after inclusion,
// per spec.md §4.B.
func (h *Handle) MatchBranches(include, exclude []string) []string {
	all := h.BranchNames()
	matches := func(patterns []string, name string) bool {
		for _, p := range patterns {
			if strings.HasSuffix(p, "*") {
				if strings.HasPrefix(name, strings.TrimSuffix(p, "*")) {
					return true
				}
			} else if p == name {
				return true
			}
		}
		return false
	}

	var selected []string
	if len(include) == 0 {
		selected = append(selected, all...)
	} else {
		for _, name := range all {
			if matches(include, name) {
				selected = append(selected, name)
			}
		}
	}

	if len(exclude) == 0 {
		return selected
	}
	var out []string
	for _, name := range selected {
		if !matches(exclude, name) {
			out = append(out, name)
		}
	}
	return out
}

// ChunkSource is a lazily-pulled sequence of Chunks. Next returns
// io.EOF once every row has been returned.
type ChunkSource interface {
	Next() (Chunk, error)
}

type chunkSource struct {
	h         *Handle
	keys      []string
	chunkSize int
	cursor    int
}

// Iterate returns a lazy sequence of Chunks of at most chunkSize rows each,
// restricted to keys (nil means every branch). The last chunk may be
// shorter than chunkSize.
func (h *Handle) Iterate(keys []string, chunkSize int) ChunkSource {
	if keys == nil {
		keys = h.BranchNames()
	}
	sortedKeys := append([]string(nil), keys...)
	sort.Strings(sortedKeys)
	return &chunkSource{h: h, keys: sortedKeys, chunkSize: chunkSize}
}

func (cs *chunkSource) Next() (Chunk, error) {
	if cs.cursor >= cs.h.rowCount {
		return Chunk{}, io.EOF
	}
	n := cs.chunkSize
	if cs.cursor+n > cs.h.rowCount {
		n = cs.h.rowCount - cs.cursor
	}
	cols := make(map[string]Column, len(cs.keys))
	for _, k := range cs.keys {
		full, ok := cs.h.data[k]
		if !ok {
			continue
		}
		cols[k] = sliceColumn(full, cs.cursor, n)
	}
	chunk := Chunk{Columns: cols, NRows: n}
	cs.cursor += n
	return chunk, nil
}

func sliceColumn(c Column, start, n int) Column {
	if c.Kind == Flat {
		return Column{Kind: Flat, Flat: c.Flat[start : start+n]}
	}
	offStart := c.Offsets[start]
	offEnd := c.Offsets[start+n]
	offsets := make([]int32, n+1)
	for i := range offsets {
		offsets[i] = c.Offsets[start+i] - offStart
	}
	return Column{Kind: Jagged, Values: c.Values[offStart:offEnd], Offsets: offsets}
}

// binReader wraps an io.Reader and accumulates the first error encountered,
// adapted from internal/hnsw/persist.go's binaryReader.
type binReader struct {
	r   io.Reader
	err error
}

func (br *binReader) read(v interface{}) {
	if br.err != nil {
		return
	}
	br.err = binary.Read(br.r, binary.LittleEndian, v)
}
func (br *binReader) readBytes(buf []byte) {
	if br.err != nil || len(buf) == 0 {
		return
	}
	_, br.err = io.ReadFull(br.r, buf)
}
func (br *binReader) readU8() uint8 {
	var v uint8
	br.read(&v)
	return v
}
func (br *binReader) readU16() uint16 {
	var v uint16
	br.read(&v)
	return v
}
func (br *binReader) readU32() uint32 {
	var v uint32
	br.read(&v)
	return v
}
func (br *binReader) readF64() float64 {
	var v float64
	br.read(&v)
	return v
}
