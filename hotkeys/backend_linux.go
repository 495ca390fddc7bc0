//go:build linux

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// stateModifierMask keeps the eight modifier bits of a KeyPress state and
// drops the pointer button bits above them.
const stateModifierMask = 0xFF

// x11Combo is one passive grab: a keycode under an exact modifier state.
type x11Combo struct {
	code xproto.Keycode
	mods Modifier
}

// x11Grab is the set of grabs backing one hotkey ID: the requested state plus
// the CapsLock/NumLock variants the server accepted.
type x11Grab struct {
	code xproto.Keycode
	mods []Modifier
}

// x11Backend claims hotkeys as passive key grabs on the root window of its
// own X connection. Grabs and ungrabs are checked requests, so a combination
// held by another client fails its Claim with BadAccess instead of surfacing
// later as an asynchronous protocol error.
type x11Backend struct {
	conn *xgb.Conn
	root xproto.Window

	events   chan ID
	quit     chan struct{}
	quitOnce sync.Once
	loopDone chan struct{}

	mu       sync.Mutex
	minCode  xproto.Keycode
	perCode  int
	keysyms  []xproto.Keysym
	grabs    map[ID]*x11Grab
	owners   map[x11Combo]ID
	closed   bool
	closeErr error
}

func newPlatformBackend() (Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	if screen == nil {
		conn.Close()
		return nil, errors.New("X server reported no screens")
	}

	b := &x11Backend{
		conn:     conn,
		root:     screen.Root,
		events:   make(chan ID),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
		grabs:    make(map[ID]*x11Grab),
		owners:   make(map[x11Combo]ID),
	}
	if err := b.loadKeymap(); err != nil {
		conn.Close()
		return nil, err
	}
	go b.run()
	return b, nil
}

// loadKeymap fetches the keycode to keysym table. Callers other than the
// constructor hold b.mu.
func (b *x11Backend) loadKeymap() error {
	setup := xproto.Setup(b.conn)
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)
	reply, err := xproto.GetKeyboardMapping(b.conn, setup.MinKeycode, count).Reply()
	if err != nil {
		return fmt.Errorf("read X keyboard mapping: %w", err)
	}
	b.minCode = setup.MinKeycode
	b.perCode = int(reply.KeysymsPerKeycode)
	b.keysyms = reply.Keysyms
	return nil
}

func (b *x11Backend) keycodeFor(key Key) (xproto.Keycode, bool) {
	if b.perCode == 0 {
		return 0, false
	}
	for i, sym := range b.keysyms {
		if Key(sym) == key {
			return b.minCode + xproto.Keycode(i/b.perCode), true
		}
	}
	return 0, false
}

func (b *x11Backend) Claim(id ID, mods Modifier, key Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if _, exists := b.grabs[id]; exists {
		return fmt.Errorf("hotkey id %d is already claimed", id)
	}
	code, ok := b.keycodeFor(key)
	if !ok {
		return fmt.Errorf("keysym 0x%X is not on the current keyboard map", key)
	}
	// The server lets a client re-grab its own combination silently, so
	// conflicts between IDs on this connection are caught here.
	if owner, taken := b.owners[x11Combo{code, mods}]; taken {
		return fmt.Errorf("combination already claimed by hotkey id %d", owner)
	}
	if err := b.grab(code, mods); err != nil {
		return err
	}

	grab := &x11Grab{code: code, mods: []Modifier{mods}}
	for _, variant := range lockVariants(mods) {
		if _, taken := b.owners[x11Combo{code, variant}]; taken {
			continue
		}
		if err := b.grab(code, variant); err != nil {
			slog.Debug("[DEBUG-HOTKEY] lock-modifier variant grab failed, skipping",
				"id", id, "modifiers", variant, "keycode", code, "error", err)
			continue
		}
		grab.mods = append(grab.mods, variant)
	}
	for _, m := range grab.mods {
		b.owners[x11Combo{code, m}] = id
	}
	b.grabs[id] = grab
	return nil
}

func (b *x11Backend) grab(code xproto.Keycode, mods Modifier) error {
	err := xproto.GrabKeyChecked(b.conn, true, b.root, uint16(mods), code,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
	if err == nil {
		return nil
	}
	var access xproto.AccessError
	if errors.As(err, &access) {
		return fmt.Errorf("combination is grabbed by another X client: %w", err)
	}
	return fmt.Errorf("grab keycode %d: %w", code, err)
}

func (b *x11Backend) Release(id ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	grab, ok := b.grabs[id]
	if !ok {
		return fmt.Errorf("hotkey id %d is not claimed", id)
	}
	if b.closed {
		return ErrClosed
	}
	delete(b.grabs, id)
	return b.ungrab(grab)
}

// ungrab releases every state of g. Callers hold b.mu.
func (b *x11Backend) ungrab(g *x11Grab) error {
	var errs []error
	for _, m := range g.mods {
		delete(b.owners, x11Combo{g.code, m})
		if err := xproto.UngrabKeyChecked(b.conn, g.code, b.root, uint16(m)).Check(); err != nil {
			errs = append(errs, fmt.Errorf("ungrab keycode %d state 0x%X: %w", g.code, m, err))
		}
	}
	return errors.Join(errs...)
}

// run reads events until the connection is closed and forwards KeyPress
// events of claimed combinations.
func (b *x11Backend) run() {
	defer close(b.loopDone)
	for {
		ev, xerr := b.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
		if xerr != nil {
			slog.Debug("[DEBUG-HOTKEY] X11 error event", "error", xerr)
			continue
		}
		switch e := ev.(type) {
		case xproto.KeyPressEvent:
			id, ok := b.lookup(e.Detail, e.State)
			if !ok {
				continue
			}
			select {
			case b.events <- id:
			case <-b.quit:
				return
			}
		case xproto.MappingNotifyEvent:
			b.mu.Lock()
			if !b.closed {
				if err := b.loadKeymap(); err != nil {
					slog.Warn("[DEBUG-HOTKEY] keyboard mapping refresh failed", "error", err)
				}
			}
			b.mu.Unlock()
		}
	}
}

func (b *x11Backend) lookup(code xproto.Keycode, state uint16) (ID, bool) {
	mods := Modifier(state) & stateModifierMask
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.owners[x11Combo{code, mods}]
	return id, ok
}

func (b *x11Backend) Next() (Notification, error) {
	select {
	case <-b.quit:
		return Notification{}, ErrClosed
	default:
	}
	select {
	case id := <-b.events:
		return Notification{ID: id}, nil
	case <-b.quit:
		return Notification{}, ErrClosed
	case <-b.loopDone:
		select {
		case <-b.quit:
			return Notification{}, ErrClosed
		default:
			return Notification{}, errors.New("X server connection lost")
		}
	}
}

func (b *x11Backend) Shutdown() error {
	b.quitOnce.Do(func() { close(b.quit) })
	return nil
}

func (b *x11Backend) Close() error {
	b.Shutdown()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return b.closeErr
	}
	b.closed = true
	var errs []error
	for id, grab := range b.grabs {
		if err := b.ungrab(grab); err != nil {
			errs = append(errs, fmt.Errorf("release hotkey %d: %w", id, err))
		}
	}
	clear(b.grabs)
	b.closeErr = errors.Join(errs...)
	b.mu.Unlock()

	b.conn.Close()
	<-b.loopDone
	return b.closeErr
}

// lockVariants returns mods combined with every CapsLock/NumLock state that
// X11 would otherwise treat as a different combination.
func lockVariants(mods Modifier) []Modifier {
	var variants []Modifier
	for _, lock := range []Modifier{modNumLock, modCapsLock, modNumLock | modCapsLock} {
		if variant := mods | lock; variant != mods && !slices.Contains(variants, variant) {
			variants = append(variants, variant)
		}
	}
	return variants
}
