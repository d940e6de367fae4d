package rest

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/repository"
)

type AuthRepo struct {
	client *Client
}

func NewAuthRepo(client *Client) *AuthRepo {
	return &AuthRepo{client: client}
}

func (r *AuthRepo) Register(ctx context.Context, input repository.RegisterInput) error {
	return r.client.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: input, public: true}, nil)
}

// Login returns the access token issued for the credentials. The refresh
// cookie lands in the client's jar.
func (r *AuthRepo) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}

	var out struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
	}
	if err := r.client.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: body, public: true}, &out); err != nil {
		return "", err
	}

	if out.Token != "" {
		return out.Token, nil
	}
	if out.AccessToken != "" {
		return out.AccessToken, nil
	}
	return "", &domain.TransportError{Op: "POST /auth/login", Err: errors.New("response carries no token")}
}

func (r *AuthRepo) Logout(ctx context.Context) error {
	return r.client.do(ctx, request{method: http.MethodPost, path: "/auth/logout", noRefresh: true}, nil)
}

func (r *AuthRepo) ConfirmEmail(ctx context.Context, userID uuid.UUID, token string) error {
	q := url.Values{"userId": {userID.String()}, "token": {token}}
	return r.client.do(ctx, request{method: http.MethodGet, path: "/auth/confirm-email", query: q, public: true}, nil)
}

func (r *AuthRepo) Profile(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/auth/profile"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
