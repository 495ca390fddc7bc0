//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var endpointPattern = regexp.MustCompile(`^/([^/\x00]+/)*hotkeyd-[A-Za-z0-9._-]{1,128}\.sock$`)

// staleProbeTimeout bounds the dial used to tell a live socket from a stale one.
const staleProbeTimeout = 200 * time.Millisecond

func defaultEndpointFor(username string) string {
	return filepath.Join(runtimeDir(), "hotkeyd-"+username+".sock")
}

func runtimeDir() string {
	if dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); dir != "" && filepath.IsAbs(dir) {
		return dir
	}
	return os.TempDir()
}

func dialEndpoint(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint, timeout)
}

// listenEndpoint listens on a Unix socket readable only by the current user.
// A socket file left behind by a crashed daemon is removed first.
func listenEndpoint(endpoint string) (net.Listener, error) {
	if err := removeStaleSocket(endpoint); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(endpoint), 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	listener, err := net.Listen("unix", endpoint)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(endpoint, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return listener, nil
}

func removeStaleSocket(endpoint string) error {
	info, err := os.Lstat(endpoint)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", endpoint)
	}
	if conn, err := net.DialTimeout("unix", endpoint, staleProbeTimeout); err == nil {
		conn.Close()
		return fmt.Errorf("%s is in use by another process", endpoint)
	}
	slog.Debug("[DEBUG-IPC] removing stale socket", "path", endpoint)
	if err := os.Remove(endpoint); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}
