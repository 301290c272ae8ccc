package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/replaycap/internal/delivery"
	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/rrweb"
)

func deliverSegment(t *testing.T, outbox string, seg replay.Segment) string {
	t.Helper()
	sink, err := delivery.NewDirSink(outbox, nil)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}
	if err := sink.Submit(context.Background(), seg); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return sink.SegmentDir(seg.Metadata.ReplayID, seg.Metadata.SegmentID)
}

func viewSegment(index int, start time.Time, urls []string, events []rrweb.Event) replay.Segment {
	return replay.Segment{
		Metadata: replay.SegmentMetadata{
			ReplayID:             "abc",
			SegmentID:            index,
			Type:                 replay.TypeSession,
			ReplayStartTimestamp: start,
			Timestamp:            start.Add(5 * time.Second),
			URLs:                 urls,
		},
		Payload: events,
	}
}

// TestViewNonExistentPath verifies that viewing a missing directory returns
// "segment not found: <path>".
func TestViewNonExistentPath(t *testing.T) {
	tmp := testEnv(t)
	missing := filepath.Join(tmp, "does-not-exist")

	out, err := executeCommand(rootCmd, "view", missing)
	if err == nil {
		t.Fatal("expected an error for a missing segment, got nil")
	}
	combined := out + err.Error()
	if !strings.Contains(combined, "segment not found: "+missing) {
		t.Errorf("expected not-found error, got: %q", combined)
	}
}

func TestViewInvalidSegment(t *testing.T) {
	testEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, delivery.EventFile), []byte(`{"type":"transaction"}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := executeCommand(rootCmd, "view", "--plain", dir)
	if err == nil || !strings.Contains(err.Error(), "not a valid replay segment") {
		t.Fatalf("expected invalid segment error, got %v", err)
	}
}

func TestViewPlainSegment(t *testing.T) {
	testEnv(t)
	start := rrweb.FromMillis(1_700_000_000_000)
	dir := deliverSegment(t, t.TempDir(), viewSegment(0, start, []string{"MainActivity"}, []rrweb.Event{
		&rrweb.MetaEvent{Timestamp: start, Width: 432, Height: 768},
		&rrweb.InteractionEvent{Timestamp: start.Add(1500 * time.Millisecond), Interaction: rrweb.TouchStart, X: 3, Y: 4},
	}))

	out, err := executeCommand(rootCmd, "view", "--plain", dir)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for _, want := range []string{"Replay:    abc", "MainActivity", "viewport 432x768", "+  1.500s", "touch_start"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestViewReplayListsSegments(t *testing.T) {
	testEnv(t)
	outbox := t.TempDir()
	start := rrweb.FromMillis(1_700_000_000_000)
	for i := 0; i < 3; i++ {
		deliverSegment(t, outbox, viewSegment(i, start.Add(time.Duration(i)*5*time.Second), nil, nil))
	}

	out, err := executeCommand(rootCmd, "view", filepath.Join(outbox, "abc"))
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !strings.Contains(out, "## Replay abc") || strings.Count(out, "0 events") != 3 {
		t.Errorf("unexpected listing:\n%s", out)
	}
}

// Feature: replaycap, Property 11: View section order
func TestViewSectionOrder(t *testing.T) {
	sectionHeaders := []string{"## Summary", "## Screens", "## Timeline"}

	rapid.Check(t, func(rt *rapid.T) {
		start := rrweb.FromMillis(rapid.Int64Range(1_000_000_000_000, 1_800_000_000_000).Draw(rt, "start"))
		urls := rapid.SliceOfN(rapid.StringMatching(`[A-Z][a-z]{1,8}`), 0, 3).Draw(rt, "urls")
		n := rapid.IntRange(0, 5).Draw(rt, "n")
		var events []rrweb.Event
		for i := 0; i < n; i++ {
			events = append(events, &rrweb.BreadcrumbEvent{
				Timestamp: start.Add(time.Duration(rapid.IntRange(0, 4999).Draw(rt, "at")) * time.Millisecond),
				Category:  rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "category"),
			})
		}
		d := &delivery.Delivered{Metadata: viewSegment(0, start, urls, nil).Metadata, Events: events}

		var sb strings.Builder
		printSegment(&sb, d)
		output := sb.String()

		positions := make([]int, len(sectionHeaders))
		for i, header := range sectionHeaders {
			pos := strings.Index(output, header)
			if pos == -1 {
				rt.Fatalf("section header %q not found in output:\n%s", header, output)
			}
			positions[i] = pos
		}
		for i := 0; i < len(positions)-1; i++ {
			if positions[i] >= positions[i+1] {
				rt.Errorf("section %q does not appear before %q in output:\n%s",
					sectionHeaders[i], sectionHeaders[i+1], output)
			}
		}
	})
}
