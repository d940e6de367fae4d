package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

type DocumentRepo struct {
	client *Client
}

func NewDocumentRepo(client *Client) *DocumentRepo {
	return &DocumentRepo{client: client}
}

// Upload posts the file as multipart form data. The body is buffered so the
// request can be replayed after a token refresh.
func (r *DocumentRepo) Upload(ctx context.Context, chatID uuid.UUID, fileName string, src io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("File", fileName)
	if err != nil {
		return fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("reading %s: %w", fileName, err)
	}
	if err := mw.WriteField("ChatId", chatID.String()); err != nil {
		return fmt.Errorf("building upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("building upload: %w", err)
	}

	return r.client.do(ctx, request{
		method:      http.MethodPost,
		path:        "/documents/upload",
		raw:         buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}, nil)
}

func (r *DocumentRepo) Download(ctx context.Context, documentID uuid.UUID, w io.Writer) error {
	return r.client.stream(ctx, request{method: http.MethodGet, path: documentPath(documentID, "/download")}, w)
}

func (r *DocumentRepo) Delete(ctx context.Context, documentID uuid.UUID) error {
	return r.client.do(ctx, request{method: http.MethodDelete, path: documentPath(documentID, "")}, nil)
}

func (r *DocumentRepo) ListByChat(ctx context.Context, chatID uuid.UUID) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.client.do(ctx, request{method: http.MethodGet, path: "/documents/chat/" + chatID.String()}, &docs)
	return docs, err
}

func (r *DocumentRepo) AccessRules(ctx context.Context, documentID uuid.UUID) ([]domain.AccessRule, error) {
	var rules []domain.AccessRule
	err := r.client.do(ctx, request{method: http.MethodGet, path: documentPath(documentID, "/access")}, &rules)
	return rules, err
}

func (r *DocumentRepo) GrantAccess(ctx context.Context, documentID, roleID uuid.UUID, flag uint32) error {
	body := map[string]any{"roleId": roleID, "accessFlag": flag}
	return r.client.do(ctx, request{method: http.MethodPost, path: documentPath(documentID, "/access/grant"), body: body}, nil)
}

func (r *DocumentRepo) RevokeAccess(ctx context.Context, documentID, roleID uuid.UUID, flag uint32) error {
	body := map[string]any{"roleId": roleID, "accessFlag": flag}
	return r.client.do(ctx, request{method: http.MethodPost, path: documentPath(documentID, "/access/revoke"), body: body}, nil)
}

func documentPath(documentID uuid.UUID, suffix string) string {
	return fmt.Sprintf("/documents/%s%s", documentID, suffix)
}
