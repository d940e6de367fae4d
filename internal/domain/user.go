package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"userId"`
	Username    string    `json:"username,omitempty"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	IsConfirmed bool      `json:"isConfirmed,omitempty"`
	Roles       []string  `json:"roles,omitempty"`
}

// DisplayName prefers the full name over the login.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditQuery selects one user's audit entries. Zero filters are omitted.
type AuditQuery struct {
	UserID uuid.UUID
	Days   int
	Start  time.Time
	End    time.Time
}
