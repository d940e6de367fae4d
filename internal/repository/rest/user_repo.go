package rest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

type UserRepo struct {
	client *Client
}

func NewUserRepo(client *Client) *UserRepo {
	return &UserRepo{client: client}
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := r.client.do(ctx, request{method: http.MethodGet, path: "/auth/get-users"}, &users)
	return users, err
}

func (r *UserRepo) ListUnconfirmed(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := r.client.do(ctx, request{method: http.MethodGet, path: "/auth/get-unconfirmed-users"}, &users)
	return users, err
}

func (r *UserRepo) Confirm(ctx context.Context, userID uuid.UUID) error {
	body := map[string]uuid.UUID{"userId": userID}
	return r.client.do(ctx, request{method: http.MethodPost, path: "/auth/confirm-account", body: body}, nil)
}

func (r *UserRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	body := map[string]uuid.UUID{"userId": userID}
	return r.client.do(ctx, request{method: http.MethodDelete, path: "/auth/delete-user", body: body}, nil)
}

func (r *UserRepo) Roles(ctx context.Context) ([]domain.Role, error) {
	var roles []domain.Role
	err := r.client.do(ctx, request{method: http.MethodGet, path: "/auth/roles"}, &roles)
	return roles, err
}

func (r *UserRepo) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	return r.client.do(ctx, request{method: http.MethodPost, path: "/auth/assign-role", body: roleBody(userID, roleName)}, nil)
}

func (r *UserRepo) RemoveRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	return r.client.do(ctx, request{method: http.MethodPost, path: "/auth/remove-role", body: roleBody(userID, roleName)}, nil)
}

func (r *UserRepo) AuditLog(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	err := r.client.do(ctx, request{method: http.MethodGet, path: "/logs/user-audit", query: auditQuery(q)}, &entries)
	return entries, err
}

func (r *UserRepo) ExportAuditLog(ctx context.Context, q domain.AuditQuery, w io.Writer) error {
	return r.client.stream(ctx, request{method: http.MethodGet, path: "/logs/export-user-audit", query: auditQuery(q)}, w)
}

func roleBody(userID uuid.UUID, roleName string) map[string]string {
	return map[string]string{"userId": userID.String(), "roleName": roleName}
}

func auditQuery(q domain.AuditQuery) url.Values {
	v := url.Values{"userId": {q.UserID.String()}}
	if q.Days > 0 {
		v.Set("days", strconv.Itoa(q.Days))
	}
	if !q.Start.IsZero() {
		v.Set("startTime", q.Start.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if !q.End.IsZero() {
		v.Set("endDate", q.End.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return v
}
