package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeletedPlaceholder replaces the content of soft-deleted messages.
const DeletedPlaceholder = "[deleted]"

type Message struct {
	ID         uuid.UUID      `json:"id"`
	ChatID     uuid.UUID      `json:"chatId"`
	SenderID   uuid.UUID      `json:"senderId"`
	SenderName string         `json:"senderName,omitempty"`
	Content    string         `json:"content"`
	IsDeleted  bool           `json:"isDeleted"`
	SentAt     time.Time      `json:"sentAt"`
	EditedAt   *time.Time     `json:"editedAt,omitempty"`
	Reactions  map[string]int `json:"reactions,omitempty"`
}

// Text returns what the chat view shows for the message.
func (m *Message) Text() string {
	if m.IsDeleted {
		return DeletedPlaceholder
	}
	return m.Content
}

type Reaction struct {
	MessageID    uuid.UUID `json:"messageId"`
	UserID       uuid.UUID `json:"userId"`
	ReactionType string    `json:"reactionType"`
}
