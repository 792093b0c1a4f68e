package session

import "time"

// Events receives session lifecycle notifications. Callbacks run outside the
// manager lock, so they may call back into the Manager (e.g. Extend).
type Events interface {
	SessionWarning(rec Record, remaining time.Duration)
	SessionExpired(rec Record)
}

// EventFuncs adapts plain functions to Events. Nil fields are ignored.
type EventFuncs struct {
	OnWarning func(rec Record, remaining time.Duration)
	OnExpired func(rec Record)
}

func (e EventFuncs) SessionWarning(rec Record, remaining time.Duration) {
	if e.OnWarning != nil {
		e.OnWarning(rec, remaining)
	}
}

func (e EventFuncs) SessionExpired(rec Record) {
	if e.OnExpired != nil {
		e.OnExpired(rec)
	}
}

// NopEvents discards every notification.
type NopEvents struct{}

func (NopEvents) SessionWarning(Record, time.Duration) {}
func (NopEvents) SessionExpired(Record)                {}
