package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

type fakeUsers struct {
	roles   []domain.Role
	calls   []string
	queries []domain.AuditQuery
}

func (f *fakeUsers) List(ctx context.Context) ([]domain.User, error) { return nil, nil }

func (f *fakeUsers) ListUnconfirmed(ctx context.Context) ([]domain.User, error) { return nil, nil }

func (f *fakeUsers) Confirm(ctx context.Context, userID uuid.UUID) error {
	f.calls = append(f.calls, "confirm")
	return nil
}

func (f *fakeUsers) Delete(ctx context.Context, userID uuid.UUID) error {
	f.calls = append(f.calls, "delete")
	return nil
}

func (f *fakeUsers) Roles(ctx context.Context) ([]domain.Role, error) { return f.roles, nil }

func (f *fakeUsers) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	f.calls = append(f.calls, "assign:"+roleName)
	return nil
}

func (f *fakeUsers) RemoveRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	f.calls = append(f.calls, "remove:"+roleName)
	return nil
}

func (f *fakeUsers) AuditLog(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	f.queries = append(f.queries, q)
	return []domain.AuditEntry{{Action: "login"}}, nil
}

func (f *fakeUsers) ExportAuditLog(ctx context.Context, q domain.AuditQuery, w io.Writer) error {
	f.queries = append(f.queries, q)
	_, err := io.WriteString(w, "csv")
	return err
}

func TestFindRole(t *testing.T) {
	admin := domain.Role{ID: uuid.New(), Name: "Admin"}
	svc := NewAdminService(&fakeUsers{roles: []domain.Role{{ID: uuid.New(), Name: "User"}, admin}})

	r, err := svc.FindRole(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, r.ID)

	r, err = svc.FindRole(context.Background(), admin.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Admin", r.Name)

	_, err = svc.FindRole(context.Background(), "root")
	assert.True(t, errors.Is(err, ErrRoleNotFound))
}

func TestAssignRoleTrimsAndValidates(t *testing.T) {
	users := &fakeUsers{}
	svc := NewAdminService(users)

	require.NoError(t, svc.AssignRole(context.Background(), uuid.New(), " Manager "))
	assert.True(t, domain.IsValidation(svc.RemoveRole(context.Background(), uuid.New(), "")))
	assert.Equal(t, []string{"assign:Manager"}, users.calls)
}

func TestAuditQueryValidation(t *testing.T) {
	users := &fakeUsers{}
	svc := NewAdminService(users)
	ctx := context.Background()

	userID := uuid.New()

	_, err := svc.AuditLog(ctx, domain.AuditQuery{Days: 7})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.AuditLog(ctx, domain.AuditQuery{UserID: userID, Days: -1})
	assert.True(t, domain.IsValidation(err))

	start := time.Now().Add(-48 * time.Hour)
	_, err = svc.AuditLog(ctx, domain.AuditQuery{UserID: userID, Start: start, End: start.Add(-time.Hour)})
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, users.queries)

	entries, err := svc.AuditLog(ctx, domain.AuditQuery{UserID: userID, Days: 7})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	var out strings.Builder
	require.NoError(t, svc.ExportAuditLog(ctx, domain.AuditQuery{UserID: userID, Start: start}, &out))
	assert.Equal(t, "csv", out.String())
}
