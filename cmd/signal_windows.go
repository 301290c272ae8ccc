//go:build windows

package cmd

import (
	"errors"
	"os"
	"os/signal"
)

// Windows has no user signals; pause and resume are unavailable there.
var (
	stopSignal   os.Signal = os.Kill
	pauseSignal  os.Signal
	resumeSignal os.Signal
)

func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

func sendSignal(pid int, sig os.Signal) error {
	if sig == nil {
		return errors.New("not supported on windows")
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(sig)
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	p.Release()
	return true
}
