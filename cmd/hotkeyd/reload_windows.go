//go:build windows

package main

// notifyReload is a no-op on Windows, which has no SIGHUP; use -signal reload.
func notifyReload(func()) (stop func()) {
	return func() {}
}
