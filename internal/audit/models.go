package audit

import "time"

// Event is an append-only security record. Violations are events with an
// Action set.
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	Severity Severity  `json:"severity"`
	Action   Action    `json:"action,omitempty"`

	UserID    int64  `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`

	Details   string    `json:"details"`
	CreatedAt time.Time `json:"timestamp"`
}

func (e Event) IsViolation() bool { return e.Action != "" }

type EventType string

const (
	EventLoginAttempt       EventType = "login_attempt"
	EventFailedLogin        EventType = "failed_login"
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventSessionTimeout     EventType = "session_timeout"
	EventUnauthorizedAccess EventType = "unauthorized_access"
	EventPasswordChange     EventType = "password_change"
	EventProfileUpdate      EventType = "profile_update"
	EventAccountLockout     EventType = "account_lockout"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Action string

const (
	ActionWarn    Action = "warn"
	ActionBlock   Action = "block"
	ActionLockout Action = "lockout"
	ActionAlert   Action = "alert"
)

// Actor identifies who triggered an event. Zero fields are unknown.
type Actor struct {
	UserID    int64
	Username  string
	IPAddress string
	UserAgent string
}
