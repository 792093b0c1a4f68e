package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type entry struct {
	m    *Manager
	feed *ActivityFeed
}

// Registry keeps one Manager per browser client. Managers are bootstrapped
// from their store on first use and dropped once their session ends.
type Registry struct {
	stores StoreFactory
	opts   Options

	// EventsFor, if set, builds the Events sink for a client.
	EventsFor func(clientID string) Events

	mu      sync.Mutex
	clients map[string]*entry
}

// NewRegistry builds managers from base, overriding Store, Activity and
// Events per client.
func NewRegistry(stores StoreFactory, base Options) *Registry {
	if base.Logger == nil {
		base.Logger = slog.Default()
	}
	return &Registry{stores: stores, opts: base, clients: make(map[string]*entry)}
}

// Get returns the client's manager, creating and bootstrapping it if needed.
// Bootstrap runs without the registry lock; when two requests race for the
// same client the first one stored wins and the other manager is closed.
func (r *Registry) Get(ctx context.Context, clientID string) (*Manager, error) {
	r.mu.Lock()
	e, ok := r.clients[clientID]
	r.mu.Unlock()
	if ok {
		return e.m, nil
	}

	e = &entry{feed: NewActivityFeed()}
	opts := r.opts
	opts.Store = r.stores.For(clientID)
	opts.Activity = e.feed
	opts.Logger = r.opts.Logger.With("client_id", clientID)
	opts.Events = r.eventsFor(clientID, e)

	e.m = NewManager(opts)
	if err := e.m.Bootstrap(ctx); err != nil {
		e.m.Close()
		return nil, fmt.Errorf("bootstrap session: %w", err)
	}

	r.mu.Lock()
	if cur, ok := r.clients[clientID]; ok {
		r.mu.Unlock()
		e.m.Close()
		return cur.m, nil
	}
	r.clients[clientID] = e
	r.mu.Unlock()
	return e.m, nil
}

// Peek returns the client's manager without creating one.
func (r *Registry) Peek(clientID string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[clientID]
	if !ok {
		return nil, false
	}
	return e.m, true
}

// Activity emits a tick on the client's feed. Unknown clients are ignored.
func (r *Registry) Activity(clientID string) {
	r.mu.Lock()
	e, ok := r.clients[clientID]
	r.mu.Unlock()
	if ok {
		e.feed.Emit()
	}
}

// Remove closes and forgets the client's manager. Its store is left as is.
func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	e, ok := r.clients[clientID]
	delete(r.clients, clientID)
	r.mu.Unlock()
	if ok {
		e.m.Close()
	}
}

// Sweep drops managers with no active session and reports how many went.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	var idle []*entry
	for id, e := range r.clients {
		if !e.m.Current().IsActive {
			idle = append(idle, e)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()
	for _, e := range idle {
		e.m.Close()
	}
	return len(idle)
}

func (r *Registry) removeEntry(clientID string, e *entry) {
	r.mu.Lock()
	cur, ok := r.clients[clientID]
	if ok && cur == e {
		delete(r.clients, clientID)
	}
	r.mu.Unlock()
	if ok && cur == e {
		e.m.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close stops every manager.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range clients {
		e.m.Close()
	}
}

func (r *Registry) eventsFor(clientID string, e *entry) Events {
	var inner Events = NopEvents{}
	if r.EventsFor != nil {
		inner = r.EventsFor(clientID)
	} else if r.opts.Events != nil {
		inner = r.opts.Events
	}
	return EventFuncs{
		OnWarning: inner.SessionWarning,
		OnExpired: func(rec Record) {
			inner.SessionExpired(rec)
			r.removeEntry(clientID, e)
		},
	}
}
