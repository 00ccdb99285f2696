//go:build !windows

package pty

import (
	"os"
	"os/signal"
	"syscall"
)

// WatchResize calls onResize with the real terminal's size after every
// SIGWINCH until stop is closed.
func WatchResize(stop <-chan struct{}, onResize func(Size)) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGWINCH)
	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-stop:
				return
			case <-sig:
				onResize(consoleSize())
			}
		}
	}()
}
