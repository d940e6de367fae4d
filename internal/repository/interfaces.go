package repository

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

type AuthRepository interface {
	Register(ctx context.Context, input RegisterInput) error
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context) error
	ConfirmEmail(ctx context.Context, userID uuid.UUID, token string) error
	Profile(ctx context.Context) (*domain.User, error)
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserRepository interface {
	List(ctx context.Context) ([]domain.User, error)
	ListUnconfirmed(ctx context.Context) ([]domain.User, error)
	Confirm(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID uuid.UUID) error
	Roles(ctx context.Context) ([]domain.Role, error)
	AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error
	RemoveRole(ctx context.Context, userID uuid.UUID, roleName string) error
	AuditLog(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error)
	ExportAuditLog(ctx context.Context, q domain.AuditQuery, w io.Writer) error
}

type ChatRepository interface {
	List(ctx context.Context) ([]domain.Chat, error)
	Get(ctx context.Context, chatID uuid.UUID) (*domain.Chat, error)
	Create(ctx context.Context, name string, chatType domain.ChatType) (uuid.UUID, error)
	Rename(ctx context.Context, chatID uuid.UUID, name string) error
	Delete(ctx context.Context, chatID uuid.UUID) error
	Participants(ctx context.Context, chatID uuid.UUID) ([]domain.Participant, error)
	AddParticipant(ctx context.Context, chatID, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error
	SetAdmin(ctx context.Context, chatID, userID uuid.UUID, isAdmin bool) error
	AccessRules(ctx context.Context, chatID uuid.UUID) ([]domain.AccessRule, error)
	GrantAccess(ctx context.Context, chatID, roleID uuid.UUID, flag uint32) error
	RevokeAccess(ctx context.Context, chatID, roleID uuid.UUID, flag uint32) error
}

// ActivityRepository fetches pages of a chat's feed, newest window first.
type ActivityRepository interface {
	FetchPage(ctx context.Context, chatID uuid.UUID, offset, pageSize int) ([]domain.FeedItem, error)
}

type MessageRepository interface {
	Send(ctx context.Context, chatID uuid.UUID, content string) error
	Edit(ctx context.Context, messageID uuid.UUID, content string) error
	Delete(ctx context.Context, messageID uuid.UUID) error
	Reactions(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error)
	AddReaction(ctx context.Context, messageID uuid.UUID, reactionType string) error
	RemoveReaction(ctx context.Context, messageID uuid.UUID) error
}

type DocumentRepository interface {
	Upload(ctx context.Context, chatID uuid.UUID, fileName string, r io.Reader) error
	Download(ctx context.Context, documentID uuid.UUID, w io.Writer) error
	Delete(ctx context.Context, documentID uuid.UUID) error
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]domain.Document, error)
	AccessRules(ctx context.Context, documentID uuid.UUID) ([]domain.AccessRule, error)
	GrantAccess(ctx context.Context, documentID, roleID uuid.UUID, flag uint32) error
	RevokeAccess(ctx context.Context, documentID, roleID uuid.UUID, flag uint32) error
}
