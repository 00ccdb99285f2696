//go:build windows

package pty

import "time"

// resizePollInterval is how often the console buffer size is sampled. A
// console has no resize signal outside of ReadConsoleInput, whose records the
// raw stdin reader already consumes.
const resizePollInterval = 250 * time.Millisecond

// WatchResize calls onResize whenever the real console's size changes, until
// stop is closed.
func WatchResize(stop <-chan struct{}, onResize func(Size)) {
	go func() {
		ticker := time.NewTicker(resizePollInterval)
		defer ticker.Stop()

		last := consoleSize()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if size := consoleSize(); size != last {
					last = size
					onResize(size)
				}
			}
		}
	}()
}
