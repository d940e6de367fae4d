package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type FeedKind string

const (
	KindMessage  FeedKind = "Message"
	KindDocument FeedKind = "Document"
)

// FeedItem is one entry of a chat's activity feed. Exactly one of Message or
// Document is set, matching Kind.
type FeedItem struct {
	Kind      FeedKind
	ID        uuid.UUID
	Timestamp time.Time
	SenderID  uuid.UUID
	Message   *Message
	Document  *Document
}

func (f FeedItem) IsDeleted() bool {
	return f.Kind == KindMessage && f.Message != nil && f.Message.IsDeleted
}

// Before orders items by timestamp, then id.
func (f FeedItem) Before(o FeedItem) bool {
	if !f.Timestamp.Equal(o.Timestamp) {
		return f.Timestamp.Before(o.Timestamp)
	}
	return bytes.Compare(f.ID[:], o.ID[:]) < 0
}

// Cursor tracks offset pagination over a feed.
type Cursor struct {
	Offset   int
	PageSize int
	HasMore  bool
}

type feedEnvelope struct {
	ID        *uuid.UUID      `json:"id"`
	Type      string          `json:"type"`
	Timestamp *time.Time      `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

var errEmptyData = errors.New("missing data")

// DecodeFeedItem parses one activity entry. Anything that does not match the
// expected shape is an error; no field is defaulted.
func DecodeFeedItem(raw json.RawMessage) (FeedItem, error) {
	var env feedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return FeedItem{}, fmt.Errorf("activity entry: %w", err)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return FeedItem{}, fmt.Errorf("activity entry: %w", errEmptyData)
	}

	item := FeedItem{Kind: FeedKind(env.Type)}
	switch item.Kind {
	case KindMessage:
		var m Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return FeedItem{}, fmt.Errorf("message entry: %w", err)
		}
		item.Message = &m
		item.ID = m.ID
		item.SenderID = m.SenderID
		item.Timestamp = m.SentAt
	case KindDocument:
		var d Document
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return FeedItem{}, fmt.Errorf("document entry: %w", err)
		}
		item.Document = &d
		item.ID = d.ID
		item.SenderID = d.SenderID
		item.Timestamp = d.UploadedAt
	default:
		return FeedItem{}, fmt.Errorf("activity entry: unknown type %q", env.Type)
	}

	if env.ID != nil && *env.ID != uuid.Nil {
		item.ID = *env.ID
	}
	if env.Timestamp != nil && !env.Timestamp.IsZero() {
		item.Timestamp = *env.Timestamp
	}

	switch {
	case item.ID == uuid.Nil:
		return FeedItem{}, errors.New("activity entry: missing id")
	case item.SenderID == uuid.Nil:
		return FeedItem{}, fmt.Errorf("activity entry %s: missing sender", item.ID)
	case item.Timestamp.IsZero():
		return FeedItem{}, fmt.Errorf("activity entry %s: missing timestamp", item.ID)
	}
	return item, nil
}
