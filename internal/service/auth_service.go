package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/repository"
	"github.com/vedran77/pulse-messenger/internal/session"
	"github.com/vedran77/pulse-messenger/pkg/validator"
)

// CookieSource exposes the auth cookies the server has set so far.
type CookieSource interface {
	Cookies() []*http.Cookie
}

type AuthService struct {
	auth    repository.AuthRepository
	session *session.Session
	cookies CookieSource
	log     *slog.Logger
}

func NewAuthService(auth repository.AuthRepository, sess *session.Session, cookies CookieSource, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{auth: auth, session: sess, cookies: cookies, log: log}
}

func (s *AuthService) Register(ctx context.Context, input repository.RegisterInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if err := validator.ValidateRegister(input.Name, input.Email, input.Password).Err(); err != nil {
		return err
	}
	if err := s.auth.Register(ctx, input); err != nil {
		return fmt.Errorf("registering: %w", err)
	}
	return nil
}

// Login exchanges credentials for a token and starts the session.
func (s *AuthService) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if err := validator.ValidateLogin(username, password).Err(); err != nil {
		return err
	}

	token, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	var cookies []*http.Cookie
	if s.cookies != nil {
		cookies = s.cookies.Cookies()
	}
	if err := s.session.Init(ctx, token, cookies); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	s.log.Info("auth: logged in", "user_id", s.session.UserID())
	return nil
}

// Logout tells the server and then drops the local session, even when the
// server could not be reached.
func (s *AuthService) Logout(ctx context.Context) error {
	if !s.session.Active() {
		return nil
	}
	if err := s.auth.Logout(ctx); err != nil {
		s.log.Warn("auth: server logout failed", "error", err)
	}
	if err := s.session.Teardown(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Profile returns the signed-in user. It also fills in the session's user
// id when the token did not carry one.
func (s *AuthService) Profile(ctx context.Context) (*domain.User, error) {
	u, err := s.auth.Profile(ctx)
	if err != nil {
		return nil, err
	}
	if s.session.UserID() == uuid.Nil && u.ID != uuid.Nil {
		if err := s.session.SetUserID(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (s *AuthService) ConfirmEmail(ctx context.Context, userID uuid.UUID, token string) error {
	if userID == uuid.Nil || strings.TrimSpace(token) == "" {
		errs := make(validator.ValidationErrors)
		errs.Add("token", "Confirmation link is incomplete")
		return errs.Err()
	}
	return s.auth.ConfirmEmail(ctx, userID, token)
}
