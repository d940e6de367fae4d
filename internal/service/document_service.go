package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/repository"
)

type DocumentService struct {
	documents repository.DocumentRepository
}

func NewDocumentService(documents repository.DocumentRepository) *DocumentService {
	return &DocumentService{documents: documents}
}

func (s *DocumentService) List(ctx context.Context, chatID uuid.UUID) ([]domain.Document, error) {
	return s.documents.ListByChat(ctx, chatID)
}

// Download saves the document under dir, named as it was uploaded. A
// partial file is removed when the transfer fails.
func (s *DocumentService) Download(ctx context.Context, doc domain.Document, dir string) (string, error) {
	name := filepath.Base(doc.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = doc.ID.String()
	}
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}

	if err := s.documents.Download(ctx, doc.ID, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Find looks a document up among the chat's documents.
func (s *DocumentService) Find(ctx context.Context, chatID, documentID uuid.UUID) (*domain.Document, error) {
	docs, err := s.documents.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == documentID {
			return &docs[i], nil
		}
	}
	return nil, fmt.Errorf("document %s: %w", documentID, ErrDocumentNotFound)
}
