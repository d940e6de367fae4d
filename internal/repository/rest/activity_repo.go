package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

var errNotArray = errors.New("activity response is not an array")

type ActivityRepo struct {
	client *Client
}

func NewActivityRepo(client *Client) *ActivityRepo {
	return &ActivityRepo{client: client}
}

// FetchPage returns up to pageSize feed items starting offset entries back
// from the newest. Failures are not retried here.
func (r *ActivityRepo) FetchPage(ctx context.Context, chatID uuid.UUID, offset, pageSize int) ([]domain.FeedItem, error) {
	req := request{
		method: http.MethodGet,
		path:   chatPath(chatID, "/activity"),
		query:  url.Values{"skip": {strconv.Itoa(offset)}, "take": {strconv.Itoa(pageSize)}},
	}

	var raw json.RawMessage
	if err := r.client.do(ctx, req, &raw); err != nil {
		return nil, err
	}

	items, err := decodeActivity(raw)
	if err != nil {
		return nil, &domain.TransportError{Op: req.op(), Err: err}
	}
	return items, nil
}

func decodeActivity(raw json.RawMessage) ([]domain.FeedItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errNotArray
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, err
	}

	items := make([]domain.FeedItem, 0, len(entries))
	for i, e := range entries {
		item, err := domain.DecodeFeedItem(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}
