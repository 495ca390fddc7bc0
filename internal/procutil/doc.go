// Package procutil configures child processes launched by hotkey actions so
// they outlive the daemon's console and signal group.
package procutil
