package cmd

import (
	"errors"
	"fmt"

	"github.com/fakeyudi/replaycap/internal/session"
)

var errNoActiveSession = errors.New("no active session")

// liveSessions returns the sessions in the cache dir whose recorder process
// is still running.
func liveSessions(cacheDir string) ([]*session.State, error) {
	states, err := session.ListActive(cacheDir)
	if err != nil {
		return nil, err
	}
	var live []*session.State
	for _, st := range states {
		if st.Lifecycle.Active() && processAlive(st.PID) {
			live = append(live, st)
		}
	}
	return live, nil
}

// targetSession picks the session a control command acts on: the one named
// by replayID, or else the most recently started.
func targetSession(cacheDir, replayID string) (*session.State, error) {
	live, err := liveSessions(cacheDir)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, errNoActiveSession
	}
	if replayID == "" {
		return live[len(live)-1], nil
	}
	for _, st := range live {
		if st.ReplayID == replayID {
			return st, nil
		}
	}
	return nil, fmt.Errorf("%w with replay id %s", errNoActiveSession, replayID)
}
