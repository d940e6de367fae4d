package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/permission"
	"github.com/vedran77/pulse-messenger/internal/repository"
	"github.com/vedran77/pulse-messenger/pkg/validator"
)

// AccessService manages role grants on chats and documents.
type AccessService struct {
	chats     repository.ChatRepository
	documents repository.DocumentRepository
	log       *slog.Logger
}

func NewAccessService(chats repository.ChatRepository, documents repository.DocumentRepository, log *slog.Logger) *AccessService {
	if log == nil {
		log = slog.Default()
	}
	return &AccessService{chats: chats, documents: documents, log: log}
}

// AccessChange is one grant or revoke issued by SetDocumentAccess.
type AccessChange struct {
	Flag  permission.Mask
	Grant bool
}

func (s *AccessService) ChatRules(ctx context.Context, chatID uuid.UUID) ([]domain.AccessRule, error) {
	return s.chats.AccessRules(ctx, chatID)
}

func (s *AccessService) GrantChat(ctx context.Context, chatID, roleID uuid.UUID, access permission.Mask) error {
	if err := validateGrant(roleID, access); err != nil {
		return err
	}
	return s.chats.GrantAccess(ctx, chatID, roleID, uint32(access))
}

func (s *AccessService) RevokeChat(ctx context.Context, chatID, roleID uuid.UUID, access permission.Mask) error {
	if err := validateGrant(roleID, access); err != nil {
		return err
	}
	return s.chats.RevokeAccess(ctx, chatID, roleID, uint32(access))
}

func (s *AccessService) DocumentRules(ctx context.Context, documentID uuid.UUID) ([]domain.AccessRule, error) {
	return s.documents.AccessRules(ctx, documentID)
}

// SetDocumentAccess brings the role's mask on the document to want. The
// current rule is read first and only the flags that differ are granted or
// revoked, one call per flag. It returns the changes that went through.
func (s *AccessService) SetDocumentAccess(ctx context.Context, documentID, roleID uuid.UUID, want permission.Mask) ([]AccessChange, error) {
	if roleID == uuid.Nil {
		errs := make(validator.ValidationErrors)
		errs.Add("role", "Select a role")
		return nil, errs.Err()
	}

	rules, err := s.documents.AccessRules(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document access: %w", err)
	}
	have := permission.ForRole(rules, roleID)

	var applied []AccessChange
	for _, flag := range permission.DocumentFlags {
		now, before := permission.Has(want, flag), permission.Has(have, flag)
		switch {
		case now && !before:
			err = s.documents.GrantAccess(ctx, documentID, roleID, uint32(flag))
		case !now && before:
			err = s.documents.RevokeAccess(ctx, documentID, roleID, uint32(flag))
		default:
			continue
		}
		if err != nil {
			return applied, fmt.Errorf("updating document access flag %d: %w", flag, err)
		}
		applied = append(applied, AccessChange{Flag: flag, Grant: now})
	}

	s.log.Info("access: document updated", "document_id", documentID, "role_id", roleID, "mask", uint32(want), "changes", len(applied))
	return applied, nil
}

func validateGrant(roleID uuid.UUID, access permission.Mask) error {
	errs := make(validator.ValidationErrors)
	if roleID == uuid.Nil {
		errs.Add("role", "Select a role")
	}
	if access == 0 {
		errs.Add("access", "Select at least one permission")
	}
	return errs.Err()
}
