package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatType int

const (
	ChatGroup ChatType = iota
	ChatDialog
	ChatChannel
)

func (t ChatType) String() string {
	switch t {
	case ChatGroup:
		return "group"
	case ChatDialog:
		return "dialog"
	case ChatChannel:
		return "channel"
	default:
		return "unknown"
	}
}

type Chat struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      ChatType  `json:"type"`
	CreatedBy uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Participant struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"isAdmin"`
}

// AccessRule is one row of a chat or document access listing. Chat listings
// are keyed by user, document listings by role.
type AccessRule struct {
	UserID     *uuid.UUID `json:"userId,omitempty"`
	RoleID     *uuid.UUID `json:"roleId,omitempty"`
	AccessMask uint32     `json:"accessMask"`
}

type Role struct {
	ID   uuid.UUID `json:"roleId"`
	Name string    `json:"name"`
}
