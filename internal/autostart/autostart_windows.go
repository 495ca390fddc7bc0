//go:build windows

package autostart

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// runKeyPath is a variable so tests can point it at a scratch key.
var runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

// Enable registers args (executable first) to run at logon, replacing any
// previous registration.
func Enable(args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("autostart: executable path required")
	}
	key, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("autostart: open run key: %w", err)
	}
	defer key.Close()

	command := windows.ComposeCommandLine(args)
	if err := key.SetStringValue(appName, command); err != nil {
		return fmt.Errorf("autostart: write run value: %w", err)
	}
	slog.Debug("[DEBUG-AUTOSTART] registered run value", "key", runKeyPath, "command", command)
	return nil
}

// Disable removes the registration. It reports whether one existed.
func Disable() (bool, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("autostart: open run key: %w", err)
	}
	defer key.Close()

	if err := key.DeleteValue(appName); err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("autostart: delete run value: %w", err)
	}
	slog.Debug("[DEBUG-AUTOSTART] removed run value", "key", runKeyPath)
	return true, nil
}

// Current reports the registration state.
func Current() (Status, error) {
	st := Status{Location: `HKCU\` + runKeyPath}
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("autostart: open run key: %w", err)
	}
	defer key.Close()

	value, _, err := key.GetStringValue(appName)
	if errors.Is(err, registry.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("autostart: read run value: %w", err)
	}
	st.Enabled = true
	st.Command = value
	return st, nil
}
