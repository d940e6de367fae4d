package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/logger"
	"github.com/vedran77/pulse-messenger/internal/permission"
)

func TestSetDocumentAccessDiffsFlags(t *testing.T) {
	roleID, otherRole := uuid.New(), uuid.New()

	tests := []struct {
		name    string
		have    permission.Mask
		want    permission.Mask
		changes []string
	}{
		{"grant from nothing", 0, permission.ViewDocument | permission.DownloadDocument, []string{"grant:view", "grant:download"}},
		{"revoke one", permission.ViewDocument | permission.DownloadDocument, permission.ViewDocument, []string{"revoke:download"}},
		{"swap", permission.ViewDocument, permission.DeleteDocumentFile, []string{"revoke:view", "grant:delete"}},
		{"unchanged", permission.ViewDocument, permission.ViewDocument, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := newFakeDocuments(nil, uuid.New())
			docs.rules = []domain.AccessRule{
				{RoleID: &otherRole, AccessMask: 7},
				{RoleID: &roleID, AccessMask: uint32(tt.have)},
			}
			svc := NewAccessService(newFakeChats(), docs, logger.Discard())

			applied, err := svc.SetDocumentAccess(context.Background(), uuid.New(), roleID, tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.changes, docs.changes)
			assert.Len(t, applied, len(tt.changes))
		})
	}
}

func TestSetDocumentAccessRequiresRole(t *testing.T) {
	docs := newFakeDocuments(nil, uuid.New())
	svc := NewAccessService(newFakeChats(), docs, logger.Discard())

	_, err := svc.SetDocumentAccess(context.Background(), uuid.New(), uuid.Nil, permission.ViewDocument)
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, docs.calls)
}

func TestSetDocumentAccessStopsOnFailure(t *testing.T) {
	roleID := uuid.New()
	docs := newFakeDocuments(nil, uuid.New())
	svc := NewAccessService(newFakeChats(), docs, logger.Discard())

	docs.err = &domain.RemoteError{Status: 403}
	_, err := svc.SetDocumentAccess(context.Background(), uuid.New(), roleID, permission.ViewDocument)
	assert.True(t, domain.IsRemote(err))
	assert.Empty(t, docs.changes)
}

func TestGrantChatValidates(t *testing.T) {
	chats := newFakeChats()
	svc := NewAccessService(chats, newFakeDocuments(nil, uuid.New()), logger.Discard())
	ctx := context.Background()

	assert.True(t, domain.IsValidation(svc.GrantChat(ctx, uuid.New(), uuid.Nil, permission.DeleteMessage)))
	assert.True(t, domain.IsValidation(svc.GrantChat(ctx, uuid.New(), uuid.New(), 0)))
	assert.Empty(t, chats.grants)

	require.NoError(t, svc.GrantChat(ctx, uuid.New(), uuid.New(), permission.DeleteMessage|permission.ManageAccess))
	assert.Equal(t, []uint32{520}, chats.grants)
}
