package session

import "sync"

// ActivitySource emits a tick for every user interaction.
type ActivitySource interface {
	Subscribe(fn func()) (cancel func())
}

// ActivityFeed is an in-process ActivitySource. The HTTP layer emits on it for
// every request a client makes.
type ActivityFeed struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func NewActivityFeed() *ActivityFeed {
	return &ActivityFeed{subs: make(map[int]func())}
}

func (f *ActivityFeed) Subscribe(fn func()) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Emit calls every subscriber. Subscribers run outside the feed lock.
func (f *ActivityFeed) Emit() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
