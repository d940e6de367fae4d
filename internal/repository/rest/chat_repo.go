package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

type ChatRepo struct {
	client *Client
}

func NewChatRepo(client *Client) *ChatRepo {
	return &ChatRepo{client: client}
}

func (r *ChatRepo) List(ctx context.Context) ([]domain.Chat, error) {
	var chats []domain.Chat
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/chats"}, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *ChatRepo) Get(ctx context.Context, chatID uuid.UUID) (*domain.Chat, error) {
	var chat domain.Chat
	if err := r.client.do(ctx, request{method: http.MethodGet, path: chatPath(chatID, "")}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepo) Create(ctx context.Context, name string, chatType domain.ChatType) (uuid.UUID, error) {
	body := map[string]any{"name": name, "type": int(chatType)}

	var out struct {
		ChatID uuid.UUID `json:"chatId"`
	}
	if err := r.client.do(ctx, request{method: http.MethodPost, path: "/chats", body: body}, &out); err != nil {
		return uuid.Nil, err
	}
	if out.ChatID == uuid.Nil {
		return uuid.Nil, &domain.TransportError{Op: "POST /chats", Err: errors.New("response carries no chatId")}
	}
	return out.ChatID, nil
}

func (r *ChatRepo) Rename(ctx context.Context, chatID uuid.UUID, name string) error {
	body := map[string]string{"newName": name}
	return r.client.do(ctx, request{method: http.MethodPut, path: chatPath(chatID, "/rename"), body: body}, nil)
}

func (r *ChatRepo) Delete(ctx context.Context, chatID uuid.UUID) error {
	return r.client.do(ctx, request{method: http.MethodDelete, path: chatPath(chatID, "")}, nil)
}

func (r *ChatRepo) Participants(ctx context.Context, chatID uuid.UUID) ([]domain.Participant, error) {
	var ps []domain.Participant
	err := r.client.do(ctx, request{method: http.MethodGet, path: chatPath(chatID, "/users")}, &ps)
	return ps, err
}

func (r *ChatRepo) AddParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	body := map[string]uuid.UUID{"userId": userID}
	return r.client.do(ctx, request{method: http.MethodPost, path: chatPath(chatID, "/users"), body: body}, nil)
}

func (r *ChatRepo) RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	return r.client.do(ctx, request{method: http.MethodDelete, path: chatPath(chatID, "/users/"+userID.String())}, nil)
}

func (r *ChatRepo) SetAdmin(ctx context.Context, chatID, userID uuid.UUID, isAdmin bool) error {
	body := map[string]bool{"isAdmin": isAdmin}
	return r.client.do(ctx, request{method: http.MethodPut, path: chatPath(chatID, "/users/"+userID.String()+"/admin"), body: body}, nil)
}

func (r *ChatRepo) AccessRules(ctx context.Context, chatID uuid.UUID) ([]domain.AccessRule, error) {
	var rules []domain.AccessRule
	err := r.client.do(ctx, request{method: http.MethodGet, path: chatPath(chatID, "/access")}, &rules)
	return rules, err
}

func (r *ChatRepo) GrantAccess(ctx context.Context, chatID, roleID uuid.UUID, flag uint32) error {
	body := map[string]any{"roleId": roleID, "access": flag}
	return r.client.do(ctx, request{method: http.MethodPost, path: chatPath(chatID, "/access/grant"), body: body}, nil)
}

func (r *ChatRepo) RevokeAccess(ctx context.Context, chatID, roleID uuid.UUID, flag uint32) error {
	body := map[string]any{"roleId": roleID, "access": flag}
	return r.client.do(ctx, request{method: http.MethodPost, path: chatPath(chatID, "/access/revoke"), body: body}, nil)
}

func chatPath(chatID uuid.UUID, suffix string) string {
	return fmt.Sprintf("/chats/%s%s", chatID, suffix)
}
