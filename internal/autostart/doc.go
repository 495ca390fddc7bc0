// Package autostart registers hotkeyd to start when the user logs in.
//
// On Windows the command line is stored under the per-user Run registry key.
// Elsewhere an XDG autostart desktop entry is written to the user's config
// directory.
package autostart

// appName names the Run value and the desktop entry file.
const appName = "hotkeyd"

// Status describes the current autostart registration.
type Status struct {
	Enabled bool
	// Command is the registered command line as stored by the platform.
	Command string
	// Location is the registry key or file holding the registration.
	Location string
}
