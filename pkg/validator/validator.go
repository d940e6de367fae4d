package validator

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/vedran77/pulse-messenger/internal/domain"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// Err converts the collected messages into a *domain.ValidationError, or nil.
func (v ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return &domain.ValidationError{Fields: v}
}

const (
	maxMessageLength = 4000
	maxChatName      = 100
	maxReactionType  = 32
)

func ValidateRegister(name, email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Name is required")
	} else if len(name) > 100 {
		errs.Add("name", "Name is too long")
	}

	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

func ValidateLogin(username, password string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(username) == "" {
		errs.Add("username", "Username is required")
	}
	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

// ValidateMessage rejects blank and oversized message content.
func ValidateMessage(content string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(content) == "" {
		errs.Add("content", "Message cannot be empty")
	} else if utf8.RuneCountInString(content) > maxMessageLength {
		errs.Add("content", "Message is too long")
	}

	return errs
}

func ValidateReaction(reactionType string) ValidationErrors {
	errs := make(ValidationErrors)

	reactionType = strings.TrimSpace(reactionType)
	if reactionType == "" {
		errs.Add("reaction", "Reaction type is required")
	} else if len(reactionType) > maxReactionType {
		errs.Add("reaction", "Reaction type is too long")
	}

	return errs
}

// ValidateUpload requires a selected, named, non-empty file. A negative size
// means the size is unknown and is not checked.
func ValidateUpload(fileName string, size int64, present bool) ValidationErrors {
	errs := make(ValidationErrors)

	if !present {
		errs.Add("file", "Select a file")
		return errs
	}
	if strings.TrimSpace(fileName) == "" {
		errs.Add("file", "File name is required")
	} else if size == 0 {
		errs.Add("file", "File is empty")
	}

	return errs
}

func ValidateChat(name string, chatType domain.ChatType, participants int) ValidationErrors {
	errs := make(ValidationErrors)

	validateChatName(name, errs)

	switch chatType {
	case domain.ChatGroup, domain.ChatChannel:
	case domain.ChatDialog:
		if participants == 0 {
			errs.Add("participants", "Select at least one user for a dialog")
		}
	default:
		errs.Add("type", "Chat type must be group, dialog, or channel")
	}

	return errs
}

func ValidateRename(name string) ValidationErrors {
	errs := make(ValidationErrors)
	validateChatName(name, errs)
	return errs
}

func validateChatName(name string, errs ValidationErrors) {
	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Chat name cannot be empty")
	} else if len(name) > maxChatName {
		errs.Add("name", "Chat name is too long")
	}
}
