// Package tui provides the interactive BubbleTea schema/histogram browser
// for the columnar event ingest engine (SPEC_FULL.md §9's "inspect mode").
// Adapted from the teacher's internal/tui search interface: the same
// header/body/status-bar layout and palette, now browsing branch schema and
// live throughput instead of semantic search results.
//
// Layout:
//
//	┌─────────────────────────────────────┐
//	│  cevt  schema browser               │  ← header
//	│  ──────────────────────────────────  │
//	│  pt         FLAT    [0, 120]        │  ← branch list
//	│  jets       JAGGED  [0, 12]  dim=6  │
//	│  ...                                │
//	│  ──────────────────────────────────  │
//	│  ▇▇▇▇▅▅▃▃▁▁  raw histogram          │  ← selected branch detail
//	│  ──────────────────────────────────  │
//	│  1.2M rows  840 kHz  ↑↓ nav  ^q quit │  ← status bar
//	└─────────────────────────────────────┘
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vkuznet/cevt/internal/observe"
	"github.com/vkuznet/cevt/internal/specs"
)

// ── Palette ──────────────────────────────────────────────────────────────────

var (
	colorAccent  = lipgloss.Color("#7C6AF7")
	colorDim     = lipgloss.Color("#555555")
	colorMuted   = lipgloss.Color("#888888")
	colorText    = lipgloss.Color("#DDDDDD")
	colorSubdued = lipgloss.Color("#444444")
	colorFlat    = lipgloss.Color("#5ECEF5")
	colorJagged  = lipgloss.Color("#5AF078")
	colorErr     = lipgloss.Color("#FF6B6B")

	sTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	sDim     = lipgloss.NewStyle().Foreground(colorDim)
	sMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	sFlat    = lipgloss.NewStyle().Foreground(colorFlat).Bold(true)
	sJagged  = lipgloss.NewStyle().Foreground(colorJagged).Bold(true)
	sErr     = lipgloss.NewStyle().Foreground(colorErr)
	sSel     = lipgloss.NewStyle().Background(lipgloss.Color("#1E1A3A")).Foreground(colorText)
	sHint    = lipgloss.NewStyle().Foreground(colorDim).Background(lipgloss.Color("#111111"))
	sDivider = lipgloss.NewStyle().Foreground(colorSubdued)
	sBar     = lipgloss.NewStyle().Foreground(colorAccent)
)

var barBlocks = []rune("▁▂▃▄▅▆▇█")

// StatsMsg carries a fresh throughput sample into the running program; a
// driving CLI command calls p.Send(StatsMsg{...}) after each batch, per the
// single-threaded cooperative model in spec.md §5 — the TUI never polls the
// pipeline itself.
type StatsMsg struct {
	Stats     observe.ChunkStats
	TotalRows int
}

// Model is the BubbleTea application model for the schema browser.
type Model struct {
	s      *specs.Specs
	reg    *observe.Registry
	keys   []string // flat keys then jagged keys, in display order
	cursor int
	stats  observe.ChunkStats
	total  int
	width  int
	height int
	err    error
}

// New builds a Model over a finalized Specs and its Observability registry.
func New(s *specs.Specs, reg *observe.Registry) Model {
	keys := make([]string, 0, len(s.FlatKeys)+len(s.JaggedKeys))
	keys = append(keys, s.FlatKeys...)
	keys = append(keys, s.JaggedKeys...)
	return Model{s: s, reg: reg, keys: keys}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StatsMsg:
		m.stats = msg.Stats
		m.total = msg.TotalRows
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q", "q":
			return m, tea.Quit
		case "up", "ctrl+p", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+n", "j":
			if m.cursor < len(m.keys)-1 {
				m.cursor++
			}
			return m, nil
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	var b strings.Builder
	w := clamp(m.width, 10, 200)
	divider := sDivider.Render(strings.Repeat("─", w-2))

	left := "  " + sTitle.Render("cevt") + "  " + sMuted.Render("schema browser")
	right := sDim.Render(fmt.Sprintf("%d branches", len(m.keys)))
	fmt.Fprintln(&b, padBetween(left, right, w))
	fmt.Fprintln(&b, "  "+divider)

	if len(m.keys) == 0 {
		fmt.Fprintln(&b, sMuted.Render("  no branches selected"))
	} else {
		m.renderList(&b)
		fmt.Fprintln(&b, "  "+divider)
		m.renderDetail(&b)
	}

	fmt.Fprintln(&b, "  "+divider)
	m.renderStatusBar(&b)
	return b.String()
}

func (m Model) renderList(b *strings.Builder) {
	for i, key := range m.keys {
		kind := "FLAT"
		kindStyle := sFlat
		dim := ""
		if i >= len(m.s.FlatKeys) {
			kind = "JAGGED"
			kindStyle = sJagged
			dim = fmt.Sprintf("  dim=%d", m.s.JDim[key])
		}
		rng := fmt.Sprintf("[%.3g, %.3g]", m.s.Min[key], m.s.Max[key])
		line := fmt.Sprintf("  %-16s %-8s %-20s%s", key, kindStyle.Render(kind), rng, dim)
		if i == m.cursor {
			line = sSel.Render(line)
		}
		fmt.Fprintln(b, line)
	}
}

func (m Model) renderDetail(b *strings.Builder) {
	if m.cursor >= len(m.keys) {
		return
	}
	key := m.keys[m.cursor]
	fmt.Fprintln(b, "  "+sDim.Render("raw histogram")+"  "+sMuted.Render(key))
	if m.reg == nil {
		fmt.Fprintln(b, sMuted.Render("  (no histogram data collected)"))
		return
	}
	if h := m.reg.Raw(key); h != nil {
		fmt.Fprintln(b, "  "+renderBars(h.Counts()))
	} else {
		fmt.Fprintln(b, sMuted.Render("  (untracked)"))
	}
}

func renderBars(counts []uint64) string {
	var max uint64
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	var b strings.Builder
	for _, c := range counts {
		idx := 0
		if max > 0 {
			idx = int(float64(len(barBlocks)-1) * float64(c) / float64(max))
		}
		b.WriteRune(barBlocks[idx])
	}
	return sBar.Render(b.String())
}

func (m Model) renderStatusBar(b *strings.Builder) {
	left := sMuted.Render(fmt.Sprintf("  %d rows", m.total))
	if m.stats.ElapsedSeconds > 0 {
		left += sDim.Render(fmt.Sprintf("  %.1f kHz  %.1f MB/s", m.stats.KHz(), m.stats.MBPerSecond()))
	}
	if m.err != nil {
		left = "  " + sErr.Render(m.err.Error())
	}
	right := sHint.Render("↑↓ nav  ^q quit  ")
	fmt.Fprint(b, padBetween(left, right, m.width))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func padBetween(left, right string, width int) string {
	lv := visibleLen(left)
	rv := visibleLen(right)
	gap := width - lv - rv - 2
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func visibleLen(s string) int {
	n := 0
	inEsc := false
	for _, c := range s {
		if c == '\x1b' {
			inEsc = true
		}
		if inEsc {
			if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}
