package domain

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFeedItemMessage(t *testing.T) {
	id, sender := uuid.New(), uuid.New()
	raw := `{"id":"` + id.String() + `","type":"Message","timestamp":"2025-03-01T10:00:00Z",
		"data":{"id":"` + id.String() + `","senderId":"` + sender.String() + `","senderName":"ana",
		"content":"hello","isDeleted":false,"sentAt":"2025-03-01T10:00:00Z","reactions":{"like":2}}}`

	item, err := DecodeFeedItem(json.RawMessage(raw))
	require.NoError(t, err)

	assert.Equal(t, KindMessage, item.Kind)
	assert.Equal(t, id, item.ID)
	assert.Equal(t, sender, item.SenderID)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), item.Timestamp.UTC())
	require.NotNil(t, item.Message)
	assert.Equal(t, "hello", item.Message.Text())
	assert.Equal(t, 2, item.Message.Reactions["like"])
	assert.Nil(t, item.Document)
}

func TestDecodeFeedItemDocumentFallsBackToData(t *testing.T) {
	id, sender := uuid.New(), uuid.New()
	raw := `{"type":"Document","data":{"id":"` + id.String() + `","senderId":"` + sender.String() + `",
		"fileName":"report.pdf","uploadedAt":"2025-03-01T11:00:00Z"}}`

	item, err := DecodeFeedItem(json.RawMessage(raw))
	require.NoError(t, err)

	assert.Equal(t, KindDocument, item.Kind)
	assert.Equal(t, id, item.ID)
	assert.Equal(t, "report.pdf", item.Document.FileName)
	assert.False(t, item.Timestamp.IsZero())
}

func TestDecodeFeedItemRejectsBadShapes(t *testing.T) {
	sender := uuid.New().String()
	cases := map[string]string{
		"unknown type":     `{"id":"` + uuid.NewString() + `","type":"Sticker","data":{"senderId":"` + sender + `"}}`,
		"missing data":     `{"id":"` + uuid.NewString() + `","type":"Message"}`,
		"null data":        `{"id":"` + uuid.NewString() + `","type":"Message","data":null}`,
		"missing id":       `{"type":"Message","data":{"senderId":"` + sender + `","sentAt":"2025-03-01T10:00:00Z"}}`,
		"missing sender":   `{"id":"` + uuid.NewString() + `","type":"Message","data":{"sentAt":"2025-03-01T10:00:00Z"}}`,
		"missing time":     `{"id":"` + uuid.NewString() + `","type":"Message","data":{"senderId":"` + sender + `"}}`,
		"wrong field type": `{"id":"` + uuid.NewString() + `","type":"Message","data":{"senderId":"` + sender + `","content":42}}`,
		"not an object":    `"Message"`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFeedItem(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}
}

func TestDeletedMessageText(t *testing.T) {
	m := &Message{Content: "secret", IsDeleted: true}
	assert.Equal(t, DeletedPlaceholder, m.Text())
}

func TestRemoteErrorMatchesAuthExpired(t *testing.T) {
	var err error = &RemoteError{Status: http.StatusUnauthorized}
	assert.True(t, errors.Is(err, ErrAuthExpired))
	assert.False(t, errors.Is(&RemoteError{Status: http.StatusForbidden}, ErrAuthExpired))
	assert.Equal(t, http.StatusUnauthorized, RemoteStatus(err))
	assert.True(t, IsRemote(err))
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"content": "required", "chat": "missing"}}
	assert.Equal(t, "validation failed: chat: missing; content: required", err.Error())
	assert.True(t, IsValidation(err))
}
