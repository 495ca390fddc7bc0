//go:build !windows

package autostart

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var userConfigDirFn = os.UserConfigDir

func entryPath() (string, error) {
	dir, err := userConfigDirFn()
	if err != nil {
		return "", fmt.Errorf("autostart: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "autostart", appName+".desktop"), nil
}

// Enable writes a desktop entry that runs args (executable first) at login,
// replacing any previous entry.
func Enable(args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("autostart: executable path required")
	}
	path, err := entryPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("autostart: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".hotkeyd.desktop.*")
	if err != nil {
		return fmt.Errorf("autostart: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.WriteString(desktopEntry(args))
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("autostart: write entry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("autostart: install entry: %w", err)
	}
	slog.Debug("[DEBUG-AUTOSTART] wrote desktop entry", "path", path)
	return nil
}

// Disable removes the desktop entry. It reports whether one existed.
func Disable() (bool, error) {
	path, err := entryPath()
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("autostart: remove entry: %w", err)
	}
	slog.Debug("[DEBUG-AUTOSTART] removed desktop entry", "path", path)
	return true, nil
}

// Current reports the registration state.
func Current() (Status, error) {
	path, err := entryPath()
	if err != nil {
		return Status{}, err
	}
	st := Status{Location: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("autostart: read entry: %w", err)
	}
	st.Enabled = true
	for line := range strings.Lines(string(raw)) {
		if exec, ok := strings.CutPrefix(strings.TrimSpace(line), "Exec="); ok {
			st.Command = exec
			break
		}
	}
	return st, nil
}

func desktopEntry(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = quoteExecArg(arg)
	}
	return "[Desktop Entry]\n" +
		"Type=Application\n" +
		"Name=hotkeyd\n" +
		"Comment=Global hotkey daemon\n" +
		"Exec=" + strings.Join(quoted, " ") + "\n" +
		"Terminal=false\n" +
		"X-GNOME-Autostart-enabled=true\n"
}

// quoteExecArg quotes arg for a desktop entry Exec key. Reserved characters
// force double quotes; inside them ", `, $ and \ are backslash-escaped and a
// literal % is doubled.
func quoteExecArg(arg string) string {
	arg = strings.ReplaceAll(arg, "%", "%%")
	if arg != "" && !strings.ContainsAny(arg, " \t\n\"'\\><~|&;$*?#()`=") {
		return arg
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range arg {
		switch r {
		case '"', '`', '$', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
