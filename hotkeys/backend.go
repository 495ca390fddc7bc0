package hotkeys

// Notification is one event delivered by a Backend. ID is zero when the OS
// event does not carry a hotkey identifier; the Listener ignores those.
type Notification struct {
	ID ID
}

// Backend is the OS boundary a Listener drives. Implementations exist per
// platform; tests inject their own.
//
// Claim and Release must be safe to call from any goroutine, including while
// another goroutine is blocked in Next.
type Backend interface {
	// Claim globally claims mods+key under id. A combination already claimed
	// elsewhere, reserved or invalid is reported as an error.
	Claim(id ID, mods Modifier, key Key) error

	// Release gives up the claim made under id.
	Release(id ID) error

	// Next blocks until the next notification. It returns ErrClosed once the
	// stream has ended (Shutdown, Close, or an OS quit signal).
	Next() (Notification, error)

	// Shutdown ends the notification stream: a blocked or future Next call
	// returns ErrClosed. Claims stay in place.
	Shutdown() error

	// Close shuts down and releases every remaining claim. Idempotent.
	Close() error
}
