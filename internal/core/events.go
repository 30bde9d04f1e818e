package core

import (
	"context"
	"sync"
)

// Event names emitted by the transport.
const (
	EventReady          = "ready"
	EventMessageCreate  = "messageCreate"
	EventGuildCreate    = "guildCreate"
	EventGuildMemberAdd = "guildMemberAdd"
)

// EventType says how often a handler fires.
type EventType string

const (
	// On fires for every occurrence.
	On EventType = "on"
	// Once fires for the first occurrence, then detaches.
	Once EventType = "once"
)

// Listener handles one event. The client is bound at registration.
type Listener func(ctx context.Context, c Client, payload any)

// EventHandler is an event subscription contributed by a module.
type EventHandler struct {
	Event    string
	Type     EventType
	Module   string // set by the loader
	Listener Listener
}

type subscription struct {
	id      uint64
	owner   string
	handler *EventHandler
	bound   func(ctx context.Context, payload any)
}

// Bus fans events out to registered listeners. Each listener belongs to an
// owner so one party can detach its own listeners without touching others.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]*subscription
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Register attaches h under owner with c bound as the listener's client.
// It returns a function that detaches this listener only.
func (b *Bus) Register(owner string, c Client, h *EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{
		id:      b.nextID,
		owner:   owner,
		handler: h,
		bound: func(ctx context.Context, payload any) {
			h.Listener(ctx, c, payload)
		},
	}
	b.subs[h.Event] = append(b.subs[h.Event], sub)

	return func() { b.remove(h.Event, sub.id) }
}

// Emit calls every listener of event in registration order. Once listeners are
// detached before they run, so each fires at most one time.
func (b *Bus) Emit(ctx context.Context, event string, payload any) {
	b.mu.Lock()
	current := b.subs[event]
	run := make([]*subscription, len(current))
	copy(run, current)

	kept := current[:0:0]
	for _, sub := range current {
		if sub.handler.Type != Once {
			kept = append(kept, sub)
		}
	}
	if len(kept) != len(current) {
		b.setLocked(event, kept)
	}
	b.mu.Unlock()

	for _, sub := range run {
		sub.bound(ctx, payload)
	}
}

// DetachOwner removes every listener registered by owner and returns how many
// were removed.
func (b *Bus) DetachOwner(owner string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for event, subs := range b.subs {
		kept := subs[:0:0]
		for _, sub := range subs {
			if sub.owner == owner {
				removed++
				continue
			}
			kept = append(kept, sub)
		}
		b.setLocked(event, kept)
	}
	return removed
}

// Count returns the number of attached listeners.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

// OwnerCount returns the number of listeners attached by owner.
func (b *Bus) OwnerCount(owner string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, subs := range b.subs {
		for _, sub := range subs {
			if sub.owner == owner {
				n++
			}
		}
	}
	return n
}

// ListenerCount returns the number of listeners for event.
func (b *Bus) ListenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[event]
	kept := subs[:0:0]
	for _, sub := range subs {
		if sub.id != id {
			kept = append(kept, sub)
		}
	}
	b.setLocked(event, kept)
}

func (b *Bus) setLocked(event string, subs []*subscription) {
	if len(subs) == 0 {
		delete(b.subs, event)
		return
	}
	b.subs[event] = subs
}
