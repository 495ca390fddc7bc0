// Package hotkeys claims global keyboard shortcuts from the operating system
// and dispatches their notifications to registered callbacks.
//
// A Listener maps listener-assigned IDs to actions. Register claims one
// modifier+key combination per call; Listen blocks the calling goroutine and
// runs the matching action for every notification the OS delivers, in order.
//
// Windows uses RegisterHotKey with a thread message queue. Linux uses X11 key
// grabs on the root window. Other platforms can still drive a Listener through
// NewWithBackend.
package hotkeys
