//go:build windows

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procRegisterHotKey     = user32DLL.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32DLL.NewProc("UnregisterHotKey")
	procGetMessageW        = user32DLL.NewProc("GetMessageW")
	procTranslateMessage   = user32DLL.NewProc("TranslateMessage")
	procDispatchMessageW   = user32DLL.NewProc("DispatchMessageW")
	procPostThreadMessageW = user32DLL.NewProc("PostThreadMessageW")
	procPeekMessageW       = user32DLL.NewProc("PeekMessageW")
)

const (
	wmQuit     = 0x0012
	wmHotkey   = 0x0312
	wmUser     = 0x0400
	pmNoRemove = 0x0000

	// closeTimeout bounds how long Close waits for the message thread to
	// release its claims and exit.
	closeTimeout = 2 * time.Second
)

// point mirrors the Win32 POINT struct.
type point struct {
	x int32
	y int32
}

// winMsg mirrors the Win32 MSG struct (tagMSG from winuser.h).
// Field order and types must not be changed -- the layout must match
// the Win32 binary layout on both 32-bit and 64-bit Windows.
type winMsg struct {
	hWnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32 // reserved by Windows; required for correct struct size
}

type loopReady struct {
	threadID uint32
	err      error
}

// win32Backend owns one OS thread and its message queue. Hotkeys registered
// with a NULL window post WM_HOTKEY to the registering thread, so every
// RegisterHotKey, UnregisterHotKey and GetMessageW call is marshalled onto
// that thread as a closure.
type win32Backend struct {
	threadID uint32
	cmds     chan func()
	closing  chan struct{}
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error

	// claimed is touched only on the message thread.
	claimed map[ID]struct{}
}

func newPlatformBackend() (Backend, error) {
	// Pre-check DLL availability so that failures produce clean errors
	// instead of panics from LazyProc.Call.
	if err := user32DLL.Load(); err != nil {
		return nil, fmt.Errorf("user32.dll is unavailable: %w", err)
	}

	b := &win32Backend{
		cmds:    make(chan func()),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		claimed: make(map[ID]struct{}),
	}

	readyCh := make(chan loopReady, 1)
	go b.run(readyCh)

	ready := <-readyCh
	if ready.err != nil {
		return nil, ready.err
	}
	b.threadID = ready.threadID
	return b, nil
}

func (b *win32Backend) run(readyCh chan<- loopReady) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.done)

	threadID := windows.GetCurrentThreadId()
	if threadID == 0 {
		readyCh <- loopReady{err: errors.New("GetCurrentThreadId returned 0")}
		return
	}

	// PeekMessageW forces Windows to create the thread message queue so that
	// PostThreadMessageW can deliver WM_USER/WM_QUIT before the first
	// GetMessageW call. Queue creation is a side effect; a zero return only
	// means the queue is empty.
	var qmsg winMsg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&qmsg)), 0, 0, 0, pmNoRemove)

	readyCh <- loopReady{threadID: threadID}

	for {
		select {
		case fn := <-b.cmds:
			fn()
		case <-b.closing:
			b.releaseAll()
			return
		}
	}
}

func (b *win32Backend) releaseAll() {
	for id := range b.claimed {
		if err := unregisterHotKey(id); err != nil {
			slog.Error("[DEBUG-HOTKEY] unregisterHotKey on close failed (resource leak)",
				"error", err, "hotkeyID", id)
		}
		delete(b.claimed, id)
	}
}

// exec runs fn on the message thread and waits for it to finish. When the
// thread is blocked in GetMessageW a WM_USER message is posted to wake it;
// Next reports that wake-up as a notification with ID 0.
func (b *win32Backend) exec(fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case b.cmds <- wrapped:
	case <-b.closing:
		return ErrClosed
	default:
		if err := postThreadMessage(b.threadID, wmUser); err != nil {
			slog.Warn("[DEBUG-HOTKEY] failed to wake message thread", "error", err)
		}
		select {
		case b.cmds <- wrapped:
		case <-b.closing:
			return ErrClosed
		}
	}

	<-finished
	return nil
}

func (b *win32Backend) Claim(id ID, mods Modifier, key Key) error {
	var claimErr error
	if err := b.exec(func() {
		if claimErr = registerHotKey(id, uint32(mods), uint32(key)); claimErr == nil {
			b.claimed[id] = struct{}{}
		}
	}); err != nil {
		return err
	}
	return claimErr
}

func (b *win32Backend) Release(id ID) error {
	var releaseErr error
	if err := b.exec(func() {
		if _, ok := b.claimed[id]; !ok {
			releaseErr = fmt.Errorf("hotkey id %d is not claimed", id)
			return
		}
		if releaseErr = unregisterHotKey(id); releaseErr == nil {
			delete(b.claimed, id)
		}
	}); err != nil {
		return err
	}
	return releaseErr
}

func (b *win32Backend) Next() (Notification, error) {
	var (
		msg     winMsg
		ret     int32
		lastErr error
	)
	if err := b.exec(func() {
		r, _, e := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		ret, lastErr = int32(r), e
		if ret > 0 && msg.message != wmHotkey && msg.message != wmUser {
			// TranslateMessage and DispatchMessageW return values are
			// informational, not error indicators, for a windowless thread.
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
		}
	}); err != nil {
		return Notification{}, err
	}

	switch ret {
	case -1:
		return Notification{}, fmt.Errorf("GetMessageW failed: %w", lastErr)
	case 0:
		// WM_QUIT -- normal end of stream.
		return Notification{}, ErrClosed
	}
	if msg.message != wmHotkey {
		return Notification{}, nil
	}
	return Notification{ID: ID(int32(msg.wParam))}, nil
}

func (b *win32Backend) Shutdown() error {
	select {
	case <-b.done:
		return nil
	default:
	}
	return postThreadMessage(b.threadID, wmQuit)
}

func (b *win32Backend) Close() error {
	b.closeOnce.Do(func() {
		stopErr := b.Shutdown()
		close(b.closing)

		timer := time.NewTimer(closeTimeout)
		defer timer.Stop()
		select {
		case <-b.done:
		case <-timer.C:
			slog.Warn("[DEBUG-HOTKEY] message thread stop timed out, thread may leak",
				"threadID", b.threadID)
			stopErr = errors.Join(stopErr, fmt.Errorf("hotkey message thread stop timed out (threadID=%d)", b.threadID))
		}
		b.closeErr = stopErr
	})
	return b.closeErr
}

func registerHotKey(id ID, modifiers uint32, key uint32) error {
	res, _, err := procRegisterHotKey.Call(
		0,
		uintptr(id),
		uintptr(modifiers),
		uintptr(key),
	)
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("RegisterHotKey failed")
	}
	return err
}

func unregisterHotKey(id ID) error {
	res, _, err := procUnregisterHotKey.Call(0, uintptr(id))
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("UnregisterHotKey failed")
	}
	return err
}

func postThreadMessage(threadID uint32, message uint32) error {
	if threadID == 0 {
		return errors.New("cannot post thread message: threadID is 0")
	}
	res, _, err := procPostThreadMessageW.Call(uintptr(threadID), uintptr(message), 0, 0)
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("PostThreadMessageW failed")
	}
	return err
}
