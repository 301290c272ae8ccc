package cmd

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/fakeyudi/replaycap/internal/session"
)

func selfPID() int { return os.Getpid() }

func TestStatusNoSession(t *testing.T) {
	testEnv(t)
	out, err := executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "no active session") {
		t.Errorf("expected %q, got:\n%s", "no active session", out)
	}
}

func TestStatusMarksStaleSessions(t *testing.T) {
	cacheDir := testEnv(t)
	writeState(t, cacheDir, "alive", selfPID(), session.Paused)
	writeState(t, cacheDir, "gone", 0, session.Recording)

	out, err := executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "State: paused") {
		t.Errorf("expected the live session to be paused, got:\n%s", out)
	}
	if !strings.Contains(out, "State: stale") {
		t.Errorf("expected the dead session to be stale, got:\n%s", out)
	}
}

// Feature: replaycap, Property 10: Status lists every session directory
func TestStatusListsEverySession(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(rt, "n")
		cacheDir := testEnv(t)
		for i := 0; i < n; i++ {
			writeState(t, cacheDir, fmt.Sprintf("replay%02d", i), 0, session.Recording)
		}

		out, err := executeCommand(rootCmd, "status")
		if err != nil {
			rt.Fatalf("status command error: %v", err)
		}
		if got := strings.Count(out, "Replay: "); got != n {
			rt.Errorf("expected %d sessions listed, got %d:\n%s", n, got, out)
		}
		for i := 0; i < n; i++ {
			want := fmt.Sprintf("Replay: replay%02d", i)
			if !strings.Contains(out, want) {
				rt.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})
}
