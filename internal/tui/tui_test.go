package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/replaycap/internal/delivery"
	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/rrweb"
)

func sampleDelivered() *delivery.Delivered {
	start := rrweb.FromMillis(1_700_000_000_000)
	return &delivery.Delivered{
		Dir: "/outbox/abc/0",
		Metadata: replay.SegmentMetadata{
			ReplayID:             "abc",
			SegmentID:            0,
			Type:                 replay.TypeSession,
			ReplayStartTimestamp: start,
			Timestamp:            start.Add(5 * time.Second),
			URLs:                 []string{"MainActivity"},
		},
		Events: []rrweb.Event{
			&rrweb.MetaEvent{Timestamp: start, Width: 432, Height: 768},
			&rrweb.VideoEvent{Timestamp: start, FrameCount: 5, FrameRate: 1, Duration: 5 * time.Second, Size: 99},
			&rrweb.InteractionEvent{Timestamp: start.Add(time.Second), Interaction: rrweb.TouchStart, X: 5, Y: 6},
			&rrweb.InteractionMoveEvent{Timestamp: start.Add(2 * time.Second), Positions: []rrweb.Position{{X: 1, Y: 1}}},
			&rrweb.BreadcrumbEvent{Timestamp: start.Add(3 * time.Second), Category: "navigation", Data: map[string]any{"to": "MainActivity"}},
		},
	}
}

func resized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func TestViewBeforeResize(t *testing.T) {
	assert.Equal(t, "Loading…", New(sampleDelivered()).View())
}

func TestSummaryTab(t *testing.T) {
	m := resized(t, New(sampleDelivered()))
	out := m.renderSummary()
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "5 @ 1 fps")
	assert.Contains(t, out, "MainActivity")
	assert.Contains(t, m.View(), "abc/0")
}

func TestTabNavigation(t *testing.T) {
	m := resized(t, New(sampleDelivered()))
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = next.(Model)
	assert.Equal(t, tabTimeline, m.activeTab)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("4")})
	m = next.(Model)
	assert.Equal(t, tabBreadcrumbs, m.activeTab)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m = next.(Model)
	assert.Equal(t, tabTouches, m.activeTab)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
}

func TestTimelineSortToggle(t *testing.T) {
	m := resized(t, New(sampleDelivered()))
	m.activeTab = tabTimeline
	asc := m.renderTimeline()
	assert.Less(t, strings.Index(asc, "META"), strings.Index(asc, "CRUMB"))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m = next.(Model)
	desc := m.renderTimeline()
	assert.Greater(t, strings.Index(desc, "META"), strings.Index(desc, "CRUMB"))
}

func TestTouchesAndBreadcrumbs(t *testing.T) {
	m := New(sampleDelivered())
	touches := m.renderTouches()
	assert.Contains(t, touches, "touch_start")
	assert.Contains(t, touches, "1 positions")

	crumbs := m.renderBreadcrumbs()
	assert.Contains(t, crumbs, "Breadcrumbs (1)")
	assert.Contains(t, crumbs, "to=MainActivity")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "viewport 10x20", Describe(&rrweb.MetaEvent{Width: 10, Height: 20}))
	assert.Equal(t, "ui.tap button", Describe(&rrweb.BreadcrumbEvent{Category: "ui.tap", Message: "button"}))
}
