package rest

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

type seenRequest struct {
	url *url.URL
}

func activityServer(t *testing.T, body string) (*ActivityRepo, *seenRequest) {
	t.Helper()
	seen := &seenRequest{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.url = r.URL
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	client, _ := newTestClient(t, handler, "token-1")
	return NewActivityRepo(client), seen
}

func TestFetchPage(t *testing.T) {
	chatID := uuid.New()
	body := `[
		{"id":"7d1b0a9e-3c1f-4a35-9c53-000000000001","type":"Message","timestamp":"2026-03-01T10:00:00Z",
		 "data":{"id":"7d1b0a9e-3c1f-4a35-9c53-000000000001","senderId":"7d1b0a9e-3c1f-4a35-9c53-0000000000aa","content":"hi","isDeleted":false,"sentAt":"2026-03-01T10:00:00Z"}},
		{"id":"7d1b0a9e-3c1f-4a35-9c53-000000000002","type":"Document","timestamp":"2026-03-01T10:01:00Z",
		 "data":{"id":"7d1b0a9e-3c1f-4a35-9c53-000000000002","senderId":"7d1b0a9e-3c1f-4a35-9c53-0000000000aa","fileName":"plan.pdf","uploadedAt":"2026-03-01T10:01:00Z"}}
	]`
	repo, seen := activityServer(t, body)

	items, err := repo.FetchPage(context.Background(), chatID, 20, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "/api/chats/"+chatID.String()+"/activity", seen.url.Path)
	assert.Equal(t, "20", seen.url.Query().Get("skip"))
	assert.Equal(t, "10", seen.url.Query().Get("take"))

	assert.Equal(t, domain.KindMessage, items[0].Kind)
	assert.Equal(t, "hi", items[0].Message.Content)
	assert.Equal(t, domain.KindDocument, items[1].Kind)
	assert.Equal(t, "plan.pdf", items[1].Document.FileName)
	assert.True(t, items[1].Timestamp.Equal(time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)))
}

func TestFetchPageEmpty(t *testing.T) {
	repo, _ := activityServer(t, `[]`)

	items, err := repo.FetchPage(context.Background(), uuid.New(), 0, 20)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetchPageRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"object", `{"items":[]}`},
		{"null", `null`},
		{"unknown type", `[{"id":"7d1b0a9e-3c1f-4a35-9c53-000000000001","type":"Poll","timestamp":"2026-03-01T10:00:00Z","data":{}}]`},
		{"missing data", `[{"id":"7d1b0a9e-3c1f-4a35-9c53-000000000001","type":"Message","timestamp":"2026-03-01T10:00:00Z"}]`},
		{"missing sender", `[{"id":"7d1b0a9e-3c1f-4a35-9c53-000000000001","type":"Message","timestamp":"2026-03-01T10:00:00Z","data":{"content":"x"}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := activityServer(t, tt.body)
			_, err := repo.FetchPage(context.Background(), uuid.New(), 0, 20)
			require.Error(t, err)
			assert.True(t, domain.IsTransport(err))
		})
	}
}
