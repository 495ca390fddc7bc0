package hotkeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"hotkeyd/internal/workerutil"
)

type listenerState int

const (
	stateIdle listenerState = iota
	stateListening
	stateStopped
	stateClosed
)

// Listener owns a registry of hotkey IDs and their actions, and the backend
// claims behind them.
//
// Register is accepted only before Listen starts; a Listener listens at most
// once. Unregister and Close may be called from any goroutine at any time.
type Listener struct {
	backend Backend

	mu       sync.Mutex
	state    listenerState
	lastID   ID
	registry map[ID]Action
}

// New creates a Listener backed by the current platform's hotkey mechanism.
func New() (*Listener, error) {
	backend, err := newPlatformBackend()
	if err != nil {
		return nil, err
	}
	return NewWithBackend(backend), nil
}

// NewWithBackend creates a Listener driving the given backend. The Listener
// takes ownership of the backend and closes it on Close.
func NewWithBackend(backend Backend) *Listener {
	return &Listener{
		backend:  backend,
		registry: make(map[ID]Action),
	}
}

// Register claims mods+key and binds action to it. It returns the new ID.
//
// Every call consumes the next ID, even when the claim fails, so a late
// notification from a failed attempt can never reach a later registration.
// A declined claim returns a *RegistrationError and leaves the registry
// untouched.
func (l *Listener) Register(mods Modifier, key Key, action Action) (ID, error) {
	if action == nil {
		return 0, errors.New("hotkey action is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case stateListening, stateStopped:
		return 0, ErrListening
	case stateClosed:
		return 0, ErrClosed
	}

	if l.lastID >= maxID {
		return 0, fmt.Errorf("%w (last id=%d)", ErrIDExhausted, l.lastID)
	}
	l.lastID++
	id := l.lastID

	if err := l.backend.Claim(id, mods, key); err != nil {
		slog.Debug("[DEBUG-HOTKEY] claim declined",
			"id", id, "modifiers", mods, "key", key, "error", err)
		return 0, &RegistrationError{ID: id, Modifiers: mods, Key: key, Err: err}
	}

	l.registry[id] = action
	slog.Debug("[DEBUG-HOTKEY] hotkey registered", "id", id, "modifiers", mods, "key", key)
	return id, nil
}

// RegisterBinding parses spec (see ParseBinding) and registers it.
func (l *Listener) RegisterBinding(spec string, action Action) (ID, error) {
	binding, err := ParseBinding(spec)
	if err != nil {
		return 0, err
	}
	id, err := l.Register(binding.Modifiers(), binding.Key(), action)
	if err != nil {
		return 0, fmt.Errorf("hotkey %q: %w", binding.Normalized(), err)
	}
	return id, nil
}

// Unregister releases the claim held under id and removes its action.
func (l *Listener) Unregister(id ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == stateClosed {
		return ErrClosed
	}
	if _, ok := l.registry[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	if err := l.backend.Release(id); err != nil {
		return fmt.Errorf("release hotkey %d: %w", id, err)
	}
	delete(l.registry, id)
	slog.Debug("[DEBUG-HOTKEY] hotkey unregistered", "id", id)
	return nil
}

// IDs returns the registered IDs in ascending order.
func (l *Listener) IDs() []ID {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]ID, 0, len(l.registry))
	for id := range l.registry {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Listen blocks and runs the action of every notification the backend
// delivers, one at a time and in delivery order. Notifications for unknown
// IDs are ignored.
//
// Listen returns nil when the notification stream ends (an OS quit signal or
// Close), ctx.Err() when ctx is cancelled, and a wrapped error when the
// backend fails.
func (l *Listener) Listen(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case stateListening, stateStopped:
		l.mu.Unlock()
		return ErrListening
	case stateClosed:
		l.mu.Unlock()
		return ErrClosed
	}
	l.state = stateListening
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		if l.state == stateListening {
			l.state = stateStopped
		}
		l.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() {
		if err := l.backend.Shutdown(); err != nil {
			slog.Warn("[DEBUG-HOTKEY] backend shutdown on cancel failed", "error", err)
		}
	})
	defer stop()

	slog.Debug("[DEBUG-HOTKEY] listen loop started")
	for {
		n, err := l.backend.Next()
		if errors.Is(err, ErrClosed) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			slog.Debug("[DEBUG-HOTKEY] notification stream ended, leaving listen loop")
			return nil
		}
		if err != nil {
			return fmt.Errorf("hotkey notification source failed: %w", err)
		}
		l.dispatch(n)
	}
}

func (l *Listener) dispatch(n Notification) {
	if n.ID == 0 {
		return
	}
	l.mu.Lock()
	action, ok := l.registry[n.ID]
	l.mu.Unlock()
	if !ok {
		slog.Debug("[DEBUG-HOTKEY] ignoring notification for unknown id", "id", n.ID)
		return
	}
	workerutil.Call("hotkey-"+strconv.Itoa(int(n.ID)), action)
}

// Close stops a running Listen, releases every claim and clears the registry.
// It is safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.state == stateClosed {
		l.mu.Unlock()
		return nil
	}
	l.state = stateClosed
	clear(l.registry)
	l.mu.Unlock()

	if err := l.backend.Close(); err != nil {
		return fmt.Errorf("close hotkey backend: %w", err)
	}
	return nil
}
