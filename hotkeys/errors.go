package hotkeys

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistrationFailed matches every error returned for a claim the OS
	// declined.
	ErrRegistrationFailed = errors.New("hotkey registration failed")

	// ErrListening is returned by Register and Listen once Listen has started.
	ErrListening = errors.New("hotkey listener already listening")

	// ErrClosed is returned after Close, and by Backend.Next at end of stream.
	ErrClosed = errors.New("hotkey listener closed")

	// ErrUnknownID is returned by Unregister for an ID with no registry entry.
	ErrUnknownID = errors.New("unknown hotkey id")

	// ErrIDExhausted is returned when a Listener has used up its ID range.
	ErrIDExhausted = errors.New("hotkey id range exhausted")

	// ErrUnsupported is returned by New on platforms without a backend.
	ErrUnsupported = errors.New("global hotkeys are not supported on this platform")
)

// RegistrationError describes a claim the OS declined. The ID it carries is
// consumed and never handed out again by the same Listener.
type RegistrationError struct {
	ID        ID
	Modifiers Modifier
	Key       Key
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register hotkey (id=%d mods=0x%X key=0x%X) failed: %v", e.ID, e.Modifiers, e.Key, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// Is reports ErrRegistrationFailed as a match so callers need not know the type.
func (e *RegistrationError) Is(target error) bool { return target == ErrRegistrationFailed }
