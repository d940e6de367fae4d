package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/permission"
	"github.com/vedran77/pulse-messenger/internal/repository"
	"github.com/vedran77/pulse-messenger/pkg/validator"
)

// CurrentUser reports who is signed in. *session.Session satisfies it.
type CurrentUser interface {
	UserID() uuid.UUID
}

// Actions says which item actions the chat view should offer.
type Actions struct {
	CanEdit   bool
	CanDelete bool
}

// MessageService performs the write actions of the chat view. Every write is
// validated locally, sent once, and followed by a refresh of the feed. A
// failed write leaves the feed as it was.
type MessageService struct {
	messages  repository.MessageRepository
	documents repository.DocumentRepository
	feed      *FeedService
	user      CurrentUser
	log       *slog.Logger

	mu       sync.RWMutex
	maskChat uuid.UUID
	mask     permission.Mask
}

func NewMessageService(
	messages repository.MessageRepository,
	documents repository.DocumentRepository,
	feed *FeedService,
	user CurrentUser,
	log *slog.Logger,
) *MessageService {
	if log == nil {
		log = slog.Default()
	}
	return &MessageService{
		messages:  messages,
		documents: documents,
		feed:      feed,
		user:      user,
		log:       log,
	}
}

// SetPermissions records the current user's access mask for chatID.
func (s *MessageService) SetPermissions(chatID uuid.UUID, mask permission.Mask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maskChat, s.mask = chatID, mask
}

// Actions gates the edit and delete affordances for item. The mask only
// counts while its chat is the one on screen.
func (s *MessageService) Actions(item domain.FeedItem) Actions {
	s.mu.RLock()
	mask := s.mask
	if s.maskChat != s.feed.ChatID() {
		mask = 0
	}
	s.mu.RUnlock()

	userID := s.user.UserID()
	return Actions{
		CanEdit:   permission.CanEdit(item, userID),
		CanDelete: permission.CanDelete(item, userID, mask),
	}
}

func (s *MessageService) Send(ctx context.Context, content string) error {
	if err := validator.ValidateMessage(content).Err(); err != nil {
		return err
	}
	return s.write(ctx, "sending message", func(ctx context.Context, chatID uuid.UUID) error {
		return s.messages.Send(ctx, chatID, content)
	})
}

func (s *MessageService) Edit(ctx context.Context, item domain.FeedItem, content string) error {
	errs := validator.ValidateMessage(content)
	if item.Kind != domain.KindMessage {
		errs.Add("item", "Only messages can be edited")
	}
	if err := errs.Err(); err != nil {
		return err
	}
	return s.write(ctx, "editing message", func(ctx context.Context, _ uuid.UUID) error {
		return s.messages.Edit(ctx, item.ID, content)
	})
}

// Delete removes a message or a document, whichever item is. The server
// decides whether the caller may.
func (s *MessageService) Delete(ctx context.Context, item domain.FeedItem) error {
	if item.Kind == domain.KindDocument {
		return s.DeleteDocument(ctx, item)
	}
	return s.write(ctx, "deleting message", func(ctx context.Context, _ uuid.UUID) error {
		return s.messages.Delete(ctx, item.ID)
	})
}

func (s *MessageService) DeleteDocument(ctx context.Context, item domain.FeedItem) error {
	if item.Kind != domain.KindDocument {
		errs := make(validator.ValidationErrors)
		errs.Add("item", "Not a document")
		return errs.Err()
	}
	return s.write(ctx, "deleting document", func(ctx context.Context, _ uuid.UUID) error {
		return s.documents.Delete(ctx, item.ID)
	})
}

// React sets the user's reaction on a message, replacing any earlier one.
func (s *MessageService) React(ctx context.Context, messageID uuid.UUID, reactionType string) error {
	if err := validator.ValidateReaction(reactionType).Err(); err != nil {
		return err
	}
	reactionType = strings.TrimSpace(reactionType)

	return s.write(ctx, "reacting", func(ctx context.Context, _ uuid.UUID) error {
		existing, err := s.messages.Reactions(ctx, messageID)
		if err != nil {
			return err
		}

		me := s.user.UserID()
		for _, r := range existing {
			if r.UserID != me {
				continue
			}
			if r.ReactionType == reactionType {
				return nil
			}
			if err := s.messages.RemoveReaction(ctx, messageID); err != nil {
				return err
			}
			break
		}
		return s.messages.AddReaction(ctx, messageID, reactionType)
	})
}

// Unreact removes the user's reaction from a message.
func (s *MessageService) Unreact(ctx context.Context, messageID uuid.UUID) error {
	return s.write(ctx, "removing reaction", func(ctx context.Context, _ uuid.UUID) error {
		return s.messages.RemoveReaction(ctx, messageID)
	})
}

// Upload sends a document into the selected chat. size may be -1 when the
// length of r is not known up front.
func (s *MessageService) Upload(ctx context.Context, fileName string, r io.Reader, size int64) error {
	if err := validator.ValidateUpload(fileName, size, r != nil).Err(); err != nil {
		return err
	}
	return s.write(ctx, "uploading "+fileName, func(ctx context.Context, chatID uuid.UUID) error {
		return s.documents.Upload(ctx, chatID, fileName, r)
	})
}

func (s *MessageService) UploadFile(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return validator.ValidateUpload("", 0, false).Err()
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		errs := make(validator.ValidationErrors)
		errs.Add("file", "Select a file, not a directory")
		return errs.Err()
	}
	return s.Upload(ctx, filepath.Base(path), f, info.Size())
}

// partialWriteError is a failed write that had already changed something on
// the server, so the feed still needs refreshing.
type partialWriteError struct {
	err error
}

func (e *partialWriteError) Error() string { return e.err.Error() }
func (e *partialWriteError) Unwrap() error { return e.err }

// write runs call against the selected chat with the sending flag raised,
// then refreshes the feed if the server state changed.
func (s *MessageService) write(ctx context.Context, op string, call func(context.Context, uuid.UUID) error) error {
	chatID := s.feed.ChatID()
	if chatID == uuid.Nil {
		return domain.ErrNoChatSelected
	}

	done := s.feed.trackSend()
	err := call(ctx, chatID)
	done()
	if err != nil {
		s.log.Warn("dispatch: write failed", "op", op, "chat_id", chatID, "error", err)
		var partial *partialWriteError
		if errors.As(err, &partial) {
			s.refreshAfter(ctx, op, chatID)
			err = partial.err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.refreshAfter(ctx, op, chatID)
	return nil
}

func (s *MessageService) refreshAfter(ctx context.Context, op string, chatID uuid.UUID) {
	if err := s.feed.refresh(ctx, chatID); err != nil {
		s.log.Warn("dispatch: refresh after write failed", "op", op, "error", err)
	}
}
