// Package singleinstance keeps one hotkeyd daemon per user: a named mutex on
// Windows, an advisory flock on a lock file elsewhere. The OS drops either
// guard when the owning process exits.
package singleinstance

import "errors"

// ErrAlreadyRunning is returned by TryLock when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")
