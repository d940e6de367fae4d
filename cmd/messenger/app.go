package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vedran77/pulse-messenger/internal/config"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/logger"
	"github.com/vedran77/pulse-messenger/internal/repository/rest"
	"github.com/vedran77/pulse-messenger/internal/service"
	"github.com/vedran77/pulse-messenger/internal/session"
)

// app is the wired client: one session, one REST client, and the services
// built on top of them.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *session.SQLiteStore
	session *session.Session
	client  *rest.Client

	activity  *rest.ActivityRepo
	messages  *rest.MessageRepo
	documents *rest.DocumentRepo

	auth   *service.AuthService
	chats  *service.ChatService
	access *service.AccessService
	admin  *service.AdminService
	docs   *service.DocumentService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log := logger.New(cfg.LogLevel, cfg.LogSink)

	store, err := session.NewSQLiteStore(cfg.SessionDB)
	if err != nil {
		return nil, err
	}
	sess := session.New(store)
	if _, err := sess.Restore(ctx); err != nil {
		log.Warn("could not restore session", "error", err)
	}

	client, err := rest.NewClient(sess, rest.Options{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Logger:    log,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	// Repositories
	authRepo := rest.NewAuthRepo(client)
	userRepo := rest.NewUserRepo(client)
	chatRepo := rest.NewChatRepo(client)
	documentRepo := rest.NewDocumentRepo(client)

	// Services
	return &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		session:   sess,
		client:    client,
		activity:  rest.NewActivityRepo(client),
		messages:  rest.NewMessageRepo(client),
		documents: documentRepo,
		auth:      service.NewAuthService(authRepo, sess, client, log),
		chats:     service.NewChatService(chatRepo, sess, log),
		access:    service.NewAccessService(chatRepo, documentRepo, log),
		admin:     service.NewAdminService(userRepo),
		docs:      service.NewDocumentService(documentRepo),
	}, nil
}

// requireSession fails early when nobody is logged in.
func (a *app) requireSession() error {
	if !a.session.Active() {
		return domain.ErrNotAuthenticated
	}
	return nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing session store", "error", err)
	}
}

// withApp runs fn with a wired app that is closed afterwards.
func withApp(ctx context.Context, authenticated bool, fn func(*app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf("starting client: %w", err)
	}
	defer a.Close()

	if authenticated {
		if err := a.requireSession(); err != nil {
			return err
		}
	}
	return fn(a)
}
