package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/fakeyudi/replaycap/internal/breadcrumb"
	"github.com/fakeyudi/replaycap/internal/clock"
	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/gesture"
)

// Record types accepted on the input stream.
const (
	RecordTouch      = "touch"
	RecordBreadcrumb = "breadcrumb"
	RecordConfig     = "config"
)

// maxLineSize bounds a single input record.
const maxLineSize = 1 << 20

// Target receives decoded input.
type Target interface {
	OnInteraction(ev gesture.PointerEvent)
	OnConfigurationChanged(rec config.Recorder) error
}

// BreadcrumbSink records breadcrumbs.
type BreadcrumbSink interface {
	Add(b breadcrumb.Breadcrumb)
}

// Record is one line of the input stream.
//
//	{"type":"touch","action":"move","pointers":[{"id":0,"x":10,"y":20}]}
//	{"type":"breadcrumb","breadcrumb":{"category":"navigation","data":{"to":"Main"}}}
//	{"type":"config","recorder":{"width":432,"height":768,"frame_rate":1}}
type Record struct {
	Type       string                 `json:"type"`
	Action     string                 `json:"action,omitempty"`
	PointerID  int                    `json:"pointer_id,omitempty"`
	X          float64                `json:"x,omitempty"`
	Y          float64                `json:"y,omitempty"`
	Pointers   []gesture.Pointer      `json:"pointers,omitempty"`
	Breadcrumb *breadcrumb.Breadcrumb `json:"breadcrumb,omitempty"`
	Recorder   *config.Recorder       `json:"recorder,omitempty"`
}

// InputReader dispatches JSON-lines records to a capture target and a
// breadcrumb sink.
type InputReader struct {
	target Target
	crumbs BreadcrumbSink
	clock  clock.Clock
	log    *slog.Logger

	skipped int
}

// NewInputReader creates a reader. crumbs may be nil, in which case
// breadcrumb records are skipped.
func NewInputReader(target Target, crumbs BreadcrumbSink, clk clock.Clock, log *slog.Logger) *InputReader {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &InputReader{target: target, crumbs: crumbs, clock: clk, log: log}
}

// Skipped returns how many lines were ignored as malformed or unknown.
func (r *InputReader) Skipped() int { return r.skipped }

// Run reads records until EOF or ctx is cancelled. Malformed lines are
// logged and skipped; only read errors are returned.
func (r *InputReader) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		if err := r.dispatch(raw); err != nil {
			r.skipped++
			r.log.Warn("source: skipping input record", "line", line, "err", err)
		}
	}
	return scanner.Err()
}

func (r *InputReader) dispatch(raw []byte) error {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	switch rec.Type {
	case RecordTouch:
		action, ok := gesture.ParseAction(rec.Action)
		if !ok {
			return fmt.Errorf("unknown touch action %q", rec.Action)
		}
		r.target.OnInteraction(gesture.PointerEvent{
			Action:    action,
			PointerID: rec.PointerID,
			X:         rec.X,
			Y:         rec.Y,
			Pointers:  rec.Pointers,
		})

	case RecordBreadcrumb:
		if rec.Breadcrumb == nil {
			return fmt.Errorf("breadcrumb record without breadcrumb")
		}
		if r.crumbs == nil {
			return nil
		}
		b := *rec.Breadcrumb
		if b.Timestamp.IsZero() {
			b.Timestamp = r.clock.Now()
		}
		r.crumbs.Add(b)

	case RecordConfig:
		if rec.Recorder == nil {
			return fmt.Errorf("config record without recorder")
		}
		if err := r.target.OnConfigurationChanged(*rec.Recorder); err != nil {
			return fmt.Errorf("configuration change rejected: %w", err)
		}

	default:
		return fmt.Errorf("unknown record type %q", rec.Type)
	}
	return nil
}
