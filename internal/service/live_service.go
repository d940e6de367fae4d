package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/transport/ws"
)

// Listener is the part of *ws.Subscriber LiveSync needs.
type Listener interface {
	Subscribe(chatID uuid.UUID, events []string, handler ws.Handler) (func(), error)
}

// LiveSync turns push events for the bound chat into feed refreshes. Bursts
// of events collapse into one refresh at a time.
type LiveSync struct {
	listener Listener
	feed     *FeedService
	log      *slog.Logger

	mu     sync.Mutex
	chatID uuid.UUID
	stop   func()
}

func NewLiveSync(listener Listener, feed *FeedService, log *slog.Logger) *LiveSync {
	if log == nil {
		log = slog.Default()
	}
	return &LiveSync{listener: listener, feed: feed, log: log}
}

// Bind follows chatID, dropping whatever chat was bound before.
func (l *LiveSync) Bind(chatID uuid.UUID) error {
	l.Unbind()

	kick := make(chan struct{}, 1)
	unsubscribe, err := l.listener.Subscribe(chatID, ws.FeedEvents, func(e ws.Event) {
		l.log.Debug("live: event", "type", e.Type, "chat_id", chatID)
		select {
		case kick <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-kick:
				if err := l.feed.refresh(ctx, chatID); err != nil && ctx.Err() == nil {
					l.log.Warn("live: refresh failed", "chat_id", chatID, "error", err)
				}
			}
		}
	}()

	l.mu.Lock()
	l.chatID = chatID
	l.stop = func() {
		unsubscribe()
		cancel()
		<-done
	}
	l.mu.Unlock()
	return nil
}

func (l *LiveSync) ChatID() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chatID
}

// Unbind stops following the current chat. It waits for a refresh in
// progress to return.
func (l *LiveSync) Unbind() {
	l.mu.Lock()
	stop := l.stop
	l.stop = nil
	l.chatID = uuid.Nil
	l.mu.Unlock()

	if stop != nil {
		stop()
	}
}
