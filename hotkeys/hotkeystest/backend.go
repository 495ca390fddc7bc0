// Package hotkeystest provides a scriptable in-memory hotkeys.Backend.
package hotkeystest

import (
	"errors"
	"fmt"
	"sync"

	"hotkeyd/hotkeys"
)

// ErrClaimRejected is the default error for claims scripted to fail.
var ErrClaimRejected = errors.New("hotkey is already registered")

// Claim records one Claim call.
type Claim struct {
	ID        hotkeys.ID
	Modifiers hotkeys.Modifier
	Key       hotkeys.Key
}

type event struct {
	n   hotkeys.Notification
	err error
}

// Backend is a fake hotkeys.Backend. Notifications are queued with Push and
// delivered by Next in order; End terminates the stream after the queued
// notifications.
type Backend struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []event
	ended    bool
	shutdown bool
	closed   bool

	claims   []Claim
	released []hotkeys.ID
	active   map[hotkeys.ID]Claim
	failAt   map[int]error
	taken    map[Claim]struct{}
}

// NewBackend returns an empty fake backend.
func NewBackend() *Backend {
	b := &Backend{
		active: make(map[hotkeys.ID]Claim),
		failAt: make(map[int]error),
		taken:  make(map[Claim]struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// FailClaim makes the attempt-th Claim call (1-based) fail with err, or with
// ErrClaimRejected when err is nil.
func (b *Backend) FailClaim(attempt int, err error) {
	if err == nil {
		err = ErrClaimRejected
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAt[attempt] = err
}

// Take marks mods+key as claimed by another process; claiming it fails.
func (b *Backend) Take(mods hotkeys.Modifier, key hotkeys.Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taken[Claim{Modifiers: mods, Key: key}] = struct{}{}
}

// Push queues one notification per id. ID 0 simulates an event that carries
// no hotkey identifier.
func (b *Backend) Push(ids ...hotkeys.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.queue = append(b.queue, event{n: hotkeys.Notification{ID: id}})
	}
	b.cond.Broadcast()
}

// PushError queues a backend failure; Next returns err when it reaches it.
func (b *Backend) PushError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, event{err: err})
	b.cond.Broadcast()
}

// End terminates the stream once the queued notifications are consumed.
func (b *Backend) End() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = true
	b.cond.Broadcast()
}

// Claim implements hotkeys.Backend.
func (b *Backend) Claim(id hotkeys.ID, mods hotkeys.Modifier, key hotkeys.Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return hotkeys.ErrClosed
	}
	c := Claim{ID: id, Modifiers: mods, Key: key}
	b.claims = append(b.claims, c)
	if err, ok := b.failAt[len(b.claims)]; ok {
		return err
	}
	if _, ok := b.taken[Claim{Modifiers: mods, Key: key}]; ok {
		return ErrClaimRejected
	}
	for _, held := range b.active {
		if held.Modifiers == mods && held.Key == key {
			return ErrClaimRejected
		}
	}
	b.active[id] = c
	return nil
}

// Release implements hotkeys.Backend.
func (b *Backend) Release(id hotkeys.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.active[id]; !ok {
		return fmt.Errorf("hotkey %d is not claimed", id)
	}
	delete(b.active, id)
	b.released = append(b.released, id)
	return nil
}

// Next implements hotkeys.Backend.
func (b *Backend) Next() (hotkeys.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.shutdown {
			return hotkeys.Notification{}, hotkeys.ErrClosed
		}
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue = b.queue[1:]
			return ev.n, ev.err
		}
		if b.ended {
			return hotkeys.Notification{}, hotkeys.ErrClosed
		}
		b.cond.Wait()
	}
}

// Shutdown implements hotkeys.Backend.
func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdown = true
	b.cond.Broadcast()
	return nil
}

// Close implements hotkeys.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.shutdown = true
	for id := range b.active {
		b.released = append(b.released, id)
	}
	clear(b.active)
	b.cond.Broadcast()
	return nil
}

// Claims returns every Claim call in order, including failed ones.
func (b *Backend) Claims() []Claim {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Claim(nil), b.claims...)
}

// Active returns the number of claims currently held.
func (b *Backend) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.active)
}

// Released returns the IDs released so far, in release order.
func (b *Backend) Released() []hotkeys.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]hotkeys.ID(nil), b.released...)
}

// Pending returns the number of queued, undelivered events.
func (b *Backend) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Closed reports whether Close has been called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
