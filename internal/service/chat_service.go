package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/permission"
	"github.com/vedran77/pulse-messenger/internal/repository"
	"github.com/vedran77/pulse-messenger/pkg/validator"
	"golang.org/x/sync/errgroup"
)

type ChatService struct {
	chats repository.ChatRepository
	user  CurrentUser
	log   *slog.Logger
}

func NewChatService(chats repository.ChatRepository, user CurrentUser, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{chats: chats, user: user, log: log}
}

// CreateChatInput describes a new chat. When RoleID is set the role is
// granted Access on the chat right after it is created.
type CreateChatInput struct {
	Name         string
	Type         domain.ChatType
	Participants []uuid.UUID
	RoleID       uuid.UUID
	Access       permission.Mask
}

// ChatInfo is everything the chat header needs, fetched in one go.
type ChatInfo struct {
	Chat         *domain.Chat
	Participants []domain.Participant
	Rules        []domain.AccessRule
	Mask         permission.Mask
}

func (s *ChatService) List(ctx context.Context) ([]domain.Chat, error) {
	return s.chats.List(ctx)
}

// Find resolves a chat by id or by exact name.
func (s *ChatService) Find(ctx context.Context, ref string) (*domain.Chat, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return s.chats.Get(ctx, id)
	}

	chats, err := s.chats.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range chats {
		if strings.EqualFold(chats[i].Name, ref) {
			return &chats[i], nil
		}
	}
	return nil, fmt.Errorf("chat %q: %w", ref, ErrChatNotFound)
}

// Create makes the chat, adds the participants, and applies the optional
// role grant. The chat id is returned even when a follow-up step fails.
func (s *ChatService) Create(ctx context.Context, input CreateChatInput) (uuid.UUID, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validator.ValidateChat(input.Name, input.Type, len(input.Participants)).Err(); err != nil {
		return uuid.Nil, err
	}

	chatID, err := s.chats.Create(ctx, input.Name, input.Type)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating chat: %w", err)
	}
	s.log.Info("chats: created", "chat_id", chatID, "type", input.Type)

	for _, userID := range input.Participants {
		if err := s.chats.AddParticipant(ctx, chatID, userID); err != nil {
			return chatID, fmt.Errorf("adding %s to chat: %w", userID, err)
		}
	}

	if input.RoleID != uuid.Nil && input.Access != 0 {
		if err := s.chats.GrantAccess(ctx, chatID, input.RoleID, uint32(input.Access)); err != nil {
			return chatID, fmt.Errorf("granting chat access: %w", err)
		}
	}
	return chatID, nil
}

func (s *ChatService) Rename(ctx context.Context, chatID uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if err := validator.ValidateRename(name).Err(); err != nil {
		return err
	}
	return s.chats.Rename(ctx, chatID, name)
}

func (s *ChatService) Delete(ctx context.Context, chatID uuid.UUID) error {
	return s.chats.Delete(ctx, chatID)
}

func (s *ChatService) Participants(ctx context.Context, chatID uuid.UUID) ([]domain.Participant, error) {
	return s.chats.Participants(ctx, chatID)
}

func (s *ChatService) AddParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	return s.chats.AddParticipant(ctx, chatID, userID)
}

func (s *ChatService) RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	return s.chats.RemoveParticipant(ctx, chatID, userID)
}

func (s *ChatService) SetAdmin(ctx context.Context, chatID, userID uuid.UUID, isAdmin bool) error {
	return s.chats.SetAdmin(ctx, chatID, userID, isAdmin)
}

// Permissions returns the signed-in user's mask on the chat.
func (s *ChatService) Permissions(ctx context.Context, chatID uuid.UUID) (permission.Mask, error) {
	rules, err := s.chats.AccessRules(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("loading chat access: %w", err)
	}
	return permission.ForUser(rules, s.user.UserID()), nil
}

// Info loads the chat, its participants and its access rules in parallel.
func (s *ChatService) Info(ctx context.Context, chatID uuid.UUID) (*ChatInfo, error) {
	info := &ChatInfo{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		chat, err := s.chats.Get(gctx, chatID)
		info.Chat = chat
		return err
	})
	g.Go(func() error {
		ps, err := s.chats.Participants(gctx, chatID)
		info.Participants = ps
		return err
	})
	g.Go(func() error {
		rules, err := s.chats.AccessRules(gctx, chatID)
		info.Rules = rules
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	info.Mask = permission.ForUser(info.Rules, s.user.UserID())
	return info, nil
}
