package audit

import (
	"context"
	"sort"
	"sync"
)

const (
	DefaultEventCap     = 1000
	DefaultViolationCap = 500
)

// MemoryRepo keeps the most recent events and violations in process. Older
// entries are dropped once a cap is reached.
type MemoryRepo struct {
	mu           sync.Mutex
	events       []Event
	violations   []Event
	eventCap     int
	violationCap int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{eventCap: DefaultEventCap, violationCap: DefaultViolationCap}
}

func (r *MemoryRepo) Append(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		if e.IsViolation() {
			r.violations = appendCapped(r.violations, e, r.violationCap)
		} else {
			r.events = appendCapped(r.events, e, r.eventCap)
		}
	}
	return nil
}

// Recent returns newest first; ties keep reverse insertion order.
func (r *MemoryRepo) Recent(_ context.Context, limit int, violations bool) ([]Event, error) {
	r.mu.Lock()
	src := r.events
	if violations {
		src = r.violations
	}
	out := make([]Event, len(src))
	for i, e := range src {
		out[len(src)-1-i] = e
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func appendCapped(s []Event, e Event, limit int) []Event {
	s = append(s, e)
	if over := len(s) - limit; over > 0 {
		s = append(s[:0:0], s[over:]...)
	}
	return s
}
