package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

type MessageRepo struct {
	client *Client
}

func NewMessageRepo(client *Client) *MessageRepo {
	return &MessageRepo{client: client}
}

func (r *MessageRepo) Send(ctx context.Context, chatID uuid.UUID, content string) error {
	body := map[string]any{"chatId": chatID, "content": content}
	return r.client.do(ctx, request{method: http.MethodPost, path: "/messages", body: body}, nil)
}

func (r *MessageRepo) Edit(ctx context.Context, messageID uuid.UUID, content string) error {
	body := map[string]string{"newContent": content}
	return r.client.do(ctx, request{method: http.MethodPut, path: messagePath(messageID, ""), body: body}, nil)
}

func (r *MessageRepo) Delete(ctx context.Context, messageID uuid.UUID) error {
	return r.client.do(ctx, request{method: http.MethodDelete, path: messagePath(messageID, "")}, nil)
}

func (r *MessageRepo) Reactions(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error) {
	var reactions []domain.Reaction
	err := r.client.do(ctx, request{method: http.MethodGet, path: messagePath(messageID, "/reactions")}, &reactions)
	return reactions, err
}

func (r *MessageRepo) AddReaction(ctx context.Context, messageID uuid.UUID, reactionType string) error {
	body := map[string]string{"reactionType": reactionType}
	return r.client.do(ctx, request{method: http.MethodPost, path: messagePath(messageID, "/reactions"), body: body}, nil)
}

// RemoveReaction removes the current user's reaction from the message.
func (r *MessageRepo) RemoveReaction(ctx context.Context, messageID uuid.UUID) error {
	return r.client.do(ctx, request{method: http.MethodDelete, path: messagePath(messageID, "/reactions")}, nil)
}

func messagePath(messageID uuid.UUID, suffix string) string {
	return fmt.Sprintf("/messages/%s%s", messageID, suffix)
}
