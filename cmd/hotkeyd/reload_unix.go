//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyReload calls reload on every SIGHUP until the returned stop is called.
func notifyReload(reload func()) (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ch:
				reload()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
