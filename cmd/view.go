package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/replaycap/internal/delivery"
	"github.com/fakeyudi/replaycap/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <segment-dir>",
	Short: "View a delivered replay segment",
	Long: `View a delivered replay segment.

Pass a segment directory (<outbox>/<replay id>/<segment>) to inspect it, or a
replay directory (<outbox>/<replay id>) to list its segments.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("segment not found: %s", path)
			}
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("not a segment directory: %s", path)
		}

		if _, err := os.Stat(filepath.Join(path, delivery.EventFile)); errors.Is(err, os.ErrNotExist) {
			return printReplay(cmd.OutOrStdout(), path)
		}

		seg, err := delivery.LoadSegment(path)
		if err != nil {
			return fmt.Errorf("not a valid replay segment: %w", err)
		}

		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printSegment(cmd.OutOrStdout(), seg)
			return nil
		}
		return tui.Run(seg)
	},
}

// printSegment writes a plain-text rendering of seg to w.
func printSegment(w io.Writer, seg *delivery.Delivered) {
	meta := seg.Metadata
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Replay:    %s\n", meta.ReplayID)
	fmt.Fprintf(w, "  Segment:   %d\n", meta.SegmentID)
	fmt.Fprintf(w, "  Start:     %s\n", meta.ReplayStartTimestamp.Format("2006-01-02 15:04:05.000 MST"))
	fmt.Fprintf(w, "  End:       %s\n", meta.Timestamp.Format("2006-01-02 15:04:05.000 MST"))
	fmt.Fprintf(w, "  Duration:  %s\n", meta.Timestamp.Sub(meta.ReplayStartTimestamp))
	if seg.VideoPath != "" {
		fmt.Fprintf(w, "  Video:     %s (%d bytes)\n", seg.VideoPath, seg.VideoSize)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Screens")
	if len(meta.URLs) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, u := range meta.URLs {
		fmt.Fprintf(w, "  %s\n", u)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Timeline")
	if len(seg.Events) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, ev := range seg.Events {
		fmt.Fprintf(w, "  +%7.3fs  %-20s  %s\n",
			ev.Time().Sub(meta.ReplayStartTimestamp).Seconds(), ev.Type(), tui.Describe(ev))
	}
	fmt.Fprintln(w)
}

// printReplay lists the segments delivered for one replay.
func printReplay(w io.Writer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var indexes []int
	for _, e := range entries {
		if n, err := strconv.Atoi(e.Name()); err == nil && e.IsDir() {
			indexes = append(indexes, n)
		}
	}
	if len(indexes) == 0 {
		return fmt.Errorf("not a valid replay segment: %s has no %s", dir, delivery.EventFile)
	}
	sort.Ints(indexes)

	fmt.Fprintf(w, "## Replay %s\n", filepath.Base(dir))
	for _, n := range indexes {
		seg, err := delivery.LoadSegment(filepath.Join(dir, strconv.Itoa(n)))
		if err != nil {
			fmt.Fprintf(w, "  %4d  (unreadable: %v)\n", n, err)
			continue
		}
		meta := seg.Metadata
		fmt.Fprintf(w, "  %4d  %s  %8s  %3d events\n", n,
			meta.ReplayStartTimestamp.Format(time.RFC3339),
			meta.Timestamp.Sub(meta.ReplayStartTimestamp), len(seg.Events))
	}
	return nil
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
