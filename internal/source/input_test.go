package source_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fakeyudi/replaycap/internal/breadcrumb"
	"github.com/fakeyudi/replaycap/internal/clock"
	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/gesture"
	"github.com/fakeyudi/replaycap/internal/source"
)

type fakeTarget struct {
	events    []gesture.PointerEvent
	recorders []config.Recorder
	reject    error
}

func (f *fakeTarget) OnInteraction(ev gesture.PointerEvent) { f.events = append(f.events, ev) }

func (f *fakeTarget) OnConfigurationChanged(rec config.Recorder) error {
	if f.reject != nil {
		return f.reject
	}
	f.recorders = append(f.recorders, rec)
	return nil
}

type crumbList []breadcrumb.Breadcrumb

func (c *crumbList) Add(b breadcrumb.Breadcrumb) { *c = append(*c, b) }

func TestInputReaderDispatches(t *testing.T) {
	clk := clock.NewManual(time.UnixMilli(1_700_000_000_000).UTC())
	target := &fakeTarget{}
	var crumbs crumbList
	r := source.NewInputReader(target, &crumbs, clk, nil)

	input := strings.Join([]string{
		`{"type":"touch","action":"down","pointer_id":1,"x":10,"y":20}`,
		`{"type":"touch","action":"move","pointers":[{"id":1,"x":11,"y":21}]}`,
		``,
		`{"type":"breadcrumb","breadcrumb":{"category":"navigation","data":{"to":"Main"}}}`,
		`{"type":"config","recorder":{"width":200,"height":400,"frame_rate":2,"bit_rate":1000,"scale_x":1,"scale_y":1}}`,
	}, "\n")
	require.NoError(t, r.Run(context.Background(), strings.NewReader(input)))

	require.Len(t, target.events, 2)
	assert.Equal(t, gesture.Down, target.events[0].Action)
	assert.Equal(t, 1, target.events[0].PointerID)
	assert.Equal(t, []gesture.Pointer{{ID: 1, X: 11, Y: 21}}, target.events[1].Pointers)

	require.Len(t, crumbs, 1)
	assert.Equal(t, clk.Now(), crumbs[0].Timestamp)
	assert.Equal(t, "Main", crumbs[0].Data["to"])

	require.Len(t, target.recorders, 1)
	assert.Equal(t, 200, target.recorders[0].Width)
	assert.Zero(t, r.Skipped())
}

func TestInputReaderSkipsBadLines(t *testing.T) {
	target := &fakeTarget{reject: errors.New("invalid")}
	r := source.NewInputReader(target, nil, nil, nil)

	input := strings.Join([]string{
		`not json`,
		`{"type":"touch","action":"wiggle"}`,
		`{"type":"teleport"}`,
		`{"type":"config"}`,
		`{"type":"config","recorder":{"width":0}}`,
		`{"type":"breadcrumb"}`,
		`{"type":"breadcrumb","breadcrumb":{"category":"ui.click"}}`,
	}, "\n")
	require.NoError(t, r.Run(context.Background(), strings.NewReader(input)))
	assert.Equal(t, 6, r.Skipped())
	assert.Empty(t, target.events)
}

func TestInputReaderStopsOnCancel(t *testing.T) {
	target := &fakeTarget{}
	r := source.NewInputReader(target, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx, strings.NewReader(`{"type":"touch","action":"down"}`)))
	assert.Empty(t, target.events)
}

// Feature: replaycap, Property 9: Every well-formed touch record reaches the target in order
func TestInputReaderPreservesTouchOrder(t *testing.T) {
	actions := []string{"down", "pointer_down", "move", "up", "pointer_up", "cancel"}
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		var lines []string
		var want []gesture.Action
		for i := 0; i < n; i++ {
			name := rapid.SampledFrom(actions).Draw(t, "action")
			lines = append(lines, `{"type":"touch","action":"`+name+`"}`)
			a, _ := gesture.ParseAction(name)
			want = append(want, a)
		}
		target := &fakeTarget{}
		r := source.NewInputReader(target, nil, nil, nil)
		if err := r.Run(context.Background(), strings.NewReader(strings.Join(lines, "\n"))); err != nil {
			t.Fatalf("run: %v", err)
		}
		if len(target.events) != len(want) {
			t.Fatalf("got %d events, want %d", len(target.events), len(want))
		}
		for i, ev := range target.events {
			if ev.Action != want[i] {
				t.Fatalf("event %d: got %v, want %v", i, ev.Action, want[i])
			}
		}
	})
}
