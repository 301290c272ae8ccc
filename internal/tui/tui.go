// Package tui provides a Bubble Tea viewer for delivered replay segments.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/replaycap/internal/delivery"
	"github.com/fakeyudi/replaycap/internal/rrweb"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	bulletStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	kindMetaStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true)
	kindVideoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	kindTouchStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	kindBreadcrumbStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabTimeline
	tabTouches
	tabBreadcrumbs
	tabCount
)

var tabNames = [tabCount]string{
	"Summary", "Timeline", "Touches", "Breadcrumbs",
}

// ── Timeline entry ───────────────────

type eventKind string

const (
	kindMeta       eventKind = "META"
	kindVideo      eventKind = "VIDEO"
	kindTouch      eventKind = "TOUCH"
	kindMove       eventKind = "MOVE"
	kindBreadcrumb eventKind = "CRUMB"
)

type timelineEntry struct {
	ts   time.Time
	kind eventKind
	text string
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the segment viewer.
type Model struct {
	seg       *delivery.Delivered
	name      string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
	timeline  []timelineEntry
}

// New creates a viewer for a loaded segment.
func New(seg *delivery.Delivered) Model {
	return Model{
		seg:      seg,
		name:     segmentName(seg),
		sortAsc:  true,
		timeline: buildTimeline(seg.Events),
	}
}

func segmentName(seg *delivery.Delivered) string {
	if seg.Dir == "" {
		return fmt.Sprintf("%s #%d", seg.Metadata.ReplayID, seg.Metadata.SegmentID)
	}
	return filepath.Base(filepath.Dir(seg.Dir)) + "/" + filepath.Base(seg.Dir)
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1", "2", "3", "4":
			m.activeTab = tabID(msg.String()[0] - '1')
			return m, nil
		case "s":
			if m.activeTab == tabTimeline {
				m.sortAsc = !m.sortAsc
				if m.ready {
					m.viewports[tabTimeline].SetContent(m.renderTab(tabTimeline))
					m.viewports[tabTimeline].GotoTop()
				}
			}
			return m, nil
		}
		if !m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  replaycap  " + m.name)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-4 jump  q quit"
	if m.activeTab == tabTimeline {
		dir := "newest first"
		if m.sortAsc {
			dir = "oldest first"
		}
		hint += "  s sort (" + dir + ")"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title, tab row and status bar
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabTimeline:
		return m.renderTimeline()
	case tabTouches:
		return m.renderTouches()
	case tabBreadcrumbs:
		return m.renderBreadcrumbs()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func bullet(text string) string {
	return bulletStyle.Render("  •") + "  " + text + "\n"
}

func (m *Model) renderSummary() string {
	meta := m.seg.Metadata
	var sb strings.Builder
	sb.WriteString(heading("Segment"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Replay:", meta.ReplayID)
	row("Segment:", fmt.Sprintf("%d", meta.SegmentID))
	row("Type:", meta.Type)
	row("Start:", meta.ReplayStartTimestamp.Format("2006-01-02 15:04:05.000 MST"))
	row("End:", meta.Timestamp.Format("2006-01-02 15:04:05.000 MST"))
	row("Duration:", meta.Timestamp.Sub(meta.ReplayStartTimestamp).String())

	if v := findVideo(m.seg.Events); v != nil {
		sb.WriteString(heading("Video"))
		row("Size:", fmt.Sprintf("%d bytes", v.Size))
		row("Duration:", v.Duration.String())
		row("Frames:", fmt.Sprintf("%d @ %d fps", v.FrameCount, v.FrameRate))
		row("Dimensions:", fmt.Sprintf("%dx%d", v.Width, v.Height))
		row("Encoding:", v.Encoding+" / "+v.Container)
	}
	if m.seg.VideoPath != "" {
		row("File:", m.seg.VideoPath)
	}

	sb.WriteString(heading("Counts"))
	c := countEvents(m.seg.Events)
	row("Events:", fmt.Sprintf("%d", len(m.seg.Events)))
	row("Touches:", fmt.Sprintf("%d", c.touches))
	row("Move batches:", fmt.Sprintf("%d", c.moves))
	row("Breadcrumbs:", fmt.Sprintf("%d", c.breadcrumbs))

	if len(meta.URLs) > 0 {
		sb.WriteString(heading("Screens"))
		for _, u := range meta.URLs {
			sb.WriteString(bullet(u))
		}
	}
	return sb.String()
}

func (m *Model) renderTimeline() string {
	var sb strings.Builder

	dir := "newest first"
	if m.sortAsc {
		dir = "oldest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Timeline (%s)", dir)))

	events := make([]timelineEntry, len(m.timeline))
	copy(events, m.timeline)
	if m.sortAsc {
		sort.SliceStable(events, func(i, j int) bool { return events[i].ts.Before(events[j].ts) })
	} else {
		sort.SliceStable(events, func(i, j int) bool { return events[i].ts.After(events[j].ts) })
	}

	if len(events) == 0 {
		sb.WriteString(dimStyle.Render("  (no events in this segment)") + "\n")
		return sb.String()
	}

	start := m.seg.Metadata.ReplayStartTimestamp
	for _, ev := range events {
		ts := timeStyle.Render(offset(ev.ts, start))
		sb.WriteString(ts + kindBadge(ev.kind) + "  " + ev.text + "\n")
	}
	return sb.String()
}

func (m *Model) renderTouches() string {
	var sb strings.Builder
	var rows []string
	start := m.seg.Metadata.ReplayStartTimestamp
	for _, ev := range m.seg.Events {
		switch e := ev.(type) {
		case *rrweb.InteractionEvent:
			rows = append(rows, fmt.Sprintf("  %s  %-14s  pointer %d  (%.0f, %.0f)",
				timeStyle.Render(offset(e.Timestamp, start)), e.Interaction, e.PointerID, e.X, e.Y))
		case *rrweb.InteractionMoveEvent:
			rows = append(rows, fmt.Sprintf("  %s  %-14s  pointer %d  %d positions",
				timeStyle.Render(offset(e.Timestamp, start)), "move", e.PointerID, len(e.Positions)))
			for _, p := range e.Positions {
				rows = append(rows, dimStyle.Render(fmt.Sprintf("      %+6dms  (%.0f, %.0f)", p.TimeOffset.Milliseconds(), p.X, p.Y)))
			}
		}
	}
	sb.WriteString(heading("Touches"))
	if len(rows) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	sb.WriteString(strings.Join(rows, "\n") + "\n")
	return sb.String()
}

func (m *Model) renderBreadcrumbs() string {
	var sb strings.Builder
	var crumbs []*rrweb.BreadcrumbEvent
	for _, ev := range m.seg.Events {
		if b, ok := ev.(*rrweb.BreadcrumbEvent); ok {
			crumbs = append(crumbs, b)
		}
	}
	sb.WriteString(heading(fmt.Sprintf("Breadcrumbs (%d)", len(crumbs))))
	if len(crumbs) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	start := m.seg.Metadata.ReplayStartTimestamp
	for _, b := range crumbs {
		ts := timeStyle.Render(offset(b.Timestamp, start))
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n", ts, kindBreadcrumbStyle.Render(b.Category), describeBreadcrumb(b)))
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func kindBadge(k eventKind) string {
	label := fmt.Sprintf("  %-6s", string(k))
	switch k {
	case kindMeta:
		return kindMetaStyle.Render(label)
	case kindVideo:
		return kindVideoStyle.Render(label)
	case kindTouch, kindMove:
		return kindTouchStyle.Render(label)
	case kindBreadcrumb:
		return kindBreadcrumbStyle.Render(label)
	}
	return label
}

// offset renders t relative to the segment start.
func offset(t, start time.Time) string {
	return fmt.Sprintf("+%6.3fs", t.Sub(start).Seconds())
}

func buildTimeline(events []rrweb.Event) []timelineEntry {
	entries := make([]timelineEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, timelineEntry{ts: ev.Time(), kind: kindOf(ev), text: Describe(ev)})
	}
	return entries
}

func kindOf(ev rrweb.Event) eventKind {
	switch ev.(type) {
	case *rrweb.MetaEvent:
		return kindMeta
	case *rrweb.VideoEvent:
		return kindVideo
	case *rrweb.InteractionEvent:
		return kindTouch
	case *rrweb.InteractionMoveEvent:
		return kindMove
	case *rrweb.BreadcrumbEvent:
		return kindBreadcrumb
	}
	return eventKind(ev.Type().String())
}

// Describe returns a one-line description of an event.
func Describe(ev rrweb.Event) string {
	switch e := ev.(type) {
	case *rrweb.MetaEvent:
		return fmt.Sprintf("viewport %dx%d", e.Width, e.Height)
	case *rrweb.VideoEvent:
		return fmt.Sprintf("segment %d, %d frames, %s, %d bytes", e.SegmentID, e.FrameCount, e.Duration, e.Size)
	case *rrweb.InteractionEvent:
		return fmt.Sprintf("%s pointer %d at (%.0f, %.0f)", e.Interaction, e.PointerID, e.X, e.Y)
	case *rrweb.InteractionMoveEvent:
		return fmt.Sprintf("pointer %d moved through %d positions", e.PointerID, len(e.Positions))
	case *rrweb.BreadcrumbEvent:
		return e.Category + " " + describeBreadcrumb(e)
	}
	return ev.Type().String()
}

func describeBreadcrumb(b *rrweb.BreadcrumbEvent) string {
	if b.Message != "" {
		return b.Message
	}
	if len(b.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(b.Data))
	for k := range b.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, b.Data[k]))
	}
	return strings.Join(parts, " ")
}

func findVideo(events []rrweb.Event) *rrweb.VideoEvent {
	for _, ev := range events {
		if v, ok := ev.(*rrweb.VideoEvent); ok {
			return v
		}
	}
	return nil
}

type eventCounts struct {
	touches, moves, breadcrumbs int
}

func countEvents(events []rrweb.Event) eventCounts {
	var c eventCounts
	for _, ev := range events {
		switch ev.(type) {
		case *rrweb.InteractionEvent:
			c.touches++
		case *rrweb.InteractionMoveEvent:
			c.moves++
		case *rrweb.BreadcrumbEvent:
			c.breadcrumbs++
		}
	}
	return c
}

// Run starts the viewer for the given segment.
func Run(seg *delivery.Delivered) error {
	p := tea.NewProgram(New(seg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
