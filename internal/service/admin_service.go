package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/repository"
	"github.com/vedran77/pulse-messenger/pkg/validator"
)

// AdminService wraps the account and audit endpoints only administrators
// may call. The server enforces that; a non-admin gets a RemoteError.
type AdminService struct {
	users repository.UserRepository
}

func NewAdminService(users repository.UserRepository) *AdminService {
	return &AdminService{users: users}
}

func (s *AdminService) Users(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *AdminService) Unconfirmed(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUnconfirmed(ctx)
}

func (s *AdminService) Confirm(ctx context.Context, userID uuid.UUID) error {
	return s.users.Confirm(ctx, userID)
}

func (s *AdminService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return s.users.Delete(ctx, userID)
}

func (s *AdminService) Roles(ctx context.Context) ([]domain.Role, error) {
	return s.users.Roles(ctx)
}

// FindRole resolves a role by id or case-insensitive name.
func (s *AdminService) FindRole(ctx context.Context, ref string) (*domain.Role, error) {
	roles, err := s.users.Roles(ctx)
	if err != nil {
		return nil, err
	}
	ref = strings.TrimSpace(ref)
	for i := range roles {
		if roles[i].ID.String() == ref || strings.EqualFold(roles[i].Name, ref) {
			return &roles[i], nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", ref, ErrRoleNotFound)
}

func (s *AdminService) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	if err := validateRoleName(roleName); err != nil {
		return err
	}
	return s.users.AssignRole(ctx, userID, strings.TrimSpace(roleName))
}

func (s *AdminService) RemoveRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	if err := validateRoleName(roleName); err != nil {
		return err
	}
	return s.users.RemoveRole(ctx, userID, strings.TrimSpace(roleName))
}

func (s *AdminService) AuditLog(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	if err := validateAuditQuery(q); err != nil {
		return nil, err
	}
	return s.users.AuditLog(ctx, q)
}

func (s *AdminService) ExportAuditLog(ctx context.Context, q domain.AuditQuery, w io.Writer) error {
	if err := validateAuditQuery(q); err != nil {
		return err
	}
	return s.users.ExportAuditLog(ctx, q, w)
}

func validateRoleName(name string) error {
	errs := make(validator.ValidationErrors)
	if strings.TrimSpace(name) == "" {
		errs.Add("role", "Role name is required")
	}
	return errs.Err()
}

func validateAuditQuery(q domain.AuditQuery) error {
	errs := make(validator.ValidationErrors)
	if q.UserID == uuid.Nil {
		errs.Add("user", "Select a user")
	}
	if q.Days < 0 {
		errs.Add("days", "Days cannot be negative")
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		errs.Add("end", "End date is before start date")
	}
	if !q.Start.IsZero() && q.Start.After(time.Now()) {
		errs.Add("start", "Start date is in the future")
	}
	return errs.Err()
}
