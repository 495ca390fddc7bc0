//go:build windows

package hotkeys

import (
	"context"
	"errors"
	"testing"
	"time"
	"unsafe"
)

// TestWinMsgSize verifies that the winMsg struct matches the Win32 MSG layout.
func TestWinMsgSize(t *testing.T) {
	// On amd64 (64-bit): 48 bytes. On 386 (32-bit): 28 bytes.
	ptrSize := unsafe.Sizeof(uintptr(0))
	var expectedSize uintptr
	switch ptrSize {
	case 8:
		expectedSize = 48
	case 4:
		expectedSize = 28
	default:
		t.Skipf("unknown pointer size %d", ptrSize)
	}
	if got := unsafe.Sizeof(winMsg{}); got != expectedSize {
		t.Fatalf("unsafe.Sizeof(winMsg{}) = %d, want %d (pointer size=%d)", got, expectedSize, ptrSize)
	}
}

func TestWin32BackendShutdownEndsStream(t *testing.T) {
	b, err := newPlatformBackend()
	if err != nil {
		t.Fatalf("newPlatformBackend: %v", err)
	}
	defer b.Close()

	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := b.Next(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Next after Shutdown err = %v, want ErrClosed", err)
	}
}

func TestWin32ListenerCancel(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// An uncommon combination keeps the test from colliding with desktop shortcuts.
	if _, err := l.Register(ModControl|ModAlt|ModShift, functionKey(24), func() {}); err != nil {
		t.Skipf("hotkey unavailable on this desktop: %v", err)
	}
	go func() { done <- l.Listen(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Listen err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Listen to stop")
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWin32BackendReleaseUnknown(t *testing.T) {
	b, err := newPlatformBackend()
	if err != nil {
		t.Fatalf("newPlatformBackend: %v", err)
	}
	defer b.Close()

	if err := b.Release(77); err == nil {
		t.Fatal("Release of unclaimed id succeeded")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Claim(1, ModAlt, functionKey(24)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Claim after Close err = %v, want ErrClosed", err)
	}
}
