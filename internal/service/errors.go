package service

import "errors"

var (
	ErrChatNotFound     = errors.New("chat not found")
	ErrRoleNotFound     = errors.New("role not found")
	ErrDocumentNotFound = errors.New("document not found")
)
