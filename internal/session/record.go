package session

import (
	"fmt"
	"time"

	"banking-portal/internal/rbac"
)

// Record is the client's current session. It is replaced wholesale on every
// transition and never patched in place by callers.
type Record struct {
	IsActive     bool       `json:"isActive"`
	LastActivity time.Time  `json:"lastActivity"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	UserID       *int64     `json:"userId"`
	Username     *string    `json:"username"`
	Role         *rbac.Role `json:"role"`
}

func inactiveRecord(now time.Time) Record {
	return Record{LastActivity: now, ExpiresAt: now}
}

// FormatRemaining renders a duration as m:ss, or "Expired" when nothing is left.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
