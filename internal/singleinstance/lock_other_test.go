//go:build !windows

package singleinstance

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func testLockName(t *testing.T, suffix string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "hotkeyd-"+suffix+".lock")
}

func TestDefaultNameUsesRuntimeDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	got := DefaultName()
	if filepath.Dir(got) != dir || !strings.HasSuffix(got, ".lock") {
		t.Fatalf("DefaultName() = %q, want a .lock file in %q", got, dir)
	}
}

func TestTryLockWritesPid(t *testing.T) {
	path := testLockName(t, "pid")
	lock, err := TryLock(path)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer lock.Release()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := strings.TrimSpace(string(raw)); got != strconv.Itoa(os.Getpid()) {
		t.Fatalf("lock file content = %q, want pid %d", got, os.Getpid())
	}
}
