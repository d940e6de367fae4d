// Package ws keeps the hub connection to the messenger server open and fans
// its invocations out to per-chat handlers. It speaks the JSON hub protocol
// over a bare WebSocket. Invocations are only a cue that something changed;
// handlers refetch what they need over REST.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 15 * time.Second
	serverTimeout  = 30 * time.Second
	maxMessageSize = 64 << 10

	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// TokenSource supplies the bearer token for each dial. *session.Session
// satisfies it.
type TokenSource interface {
	Token() string
}

// Handler receives the events of one subscription. It runs on the read
// loop, so it should hand slow work off.
type Handler func(Event)

type Options struct {
	URL        string
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

type subscription struct {
	chatID  uuid.UUID
	events  map[string]struct{}
	handler Handler
}

// Subscriber holds one hub connection and redials it with exponential
// backoff and jitter until Close.
type Subscriber struct {
	url        *url.URL
	tokens     TokenSource
	minBackoff time.Duration
	maxBackoff time.Duration
	log        *slog.Logger

	mu      sync.Mutex
	subs    map[*subscription]struct{}
	started bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSubscriber(tokens TokenSource, opts Options) (*Subscriber, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing hub url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("hub url must be ws, wss, http or https, got %q", opts.URL)
	}

	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(defaultMaxBackoff, opts.MinBackoff)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		url:        u,
		tokens:     tokens,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		log:        opts.Logger,
		subs:       make(map[*subscription]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

// URLFromAPI derives the hub endpoint from the REST base URL:
// http://host/api becomes ws://host/chatHub.
func URLFromAPI(api string) (string, error) {
	u, err := url.Parse(api)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/api") + "/chatHub"
	u.RawQuery = ""
	return u.String(), nil
}

// Subscribe delivers events of the given types for chatID to handler until
// the returned cancel func is called. An empty events list means all. The
// connection is dialed on the first subscription.
func (s *Subscriber) Subscribe(chatID uuid.UUID, events []string, handler Handler) (func(), error) {
	sub := &subscription{chatID: chatID, handler: handler}
	if len(events) > 0 {
		sub.events = make(map[string]struct{}, len(events))
		for _, e := range events {
			sub.events[e] = struct{}{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("ws: subscriber closed")
	}
	s.subs[sub] = struct{}{}
	if !s.started {
		s.started = true
		go s.run()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		})
	}, nil
}

// Close drops the connection and stops redialing.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	s.cancel()
	if started {
		<-s.done
	}
	return nil
}

func (s *Subscriber) run() {
	defer close(s.done)

	attempt := 0
	for {
		conn, pending, err := s.connect(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			attempt++
			wait := s.backoff(attempt)
			s.log.Warn("ws: connect failed, retrying", "attempt", attempt, "backoff", wait, "error", err)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		attempt = 0
		s.log.Info("ws: connected", "url", s.url.Redacted())
		err = s.serve(conn, pending)
		if s.ctx.Err() != nil {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if websocket.CloseStatus(err) != -1 {
			s.log.Info("ws: server closed connection", "status", websocket.CloseStatus(err))
		} else {
			s.log.Warn("ws: connection lost", "error", err)
		}
		conn.Close(websocket.StatusGoingAway, "")

		attempt++
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.backoff(attempt)):
		}
	}
}

// connect dials the hub and completes the handshake. Records that arrived
// in the same frame as the handshake response are returned for serving.
func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, [][]byte, error) {
	u := *s.url
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("access_token", s.tokens.Token())
	u.RawQuery = q.Encode()

	hctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	conn, resp, err := websocket.Dial(hctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, nil, fmt.Errorf("dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	records, err := s.handshake(hctx, conn)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, nil, err
	}
	return conn, records, nil
}

func (s *Subscriber) handshake(ctx context.Context, conn *websocket.Conn) ([][]byte, error) {
	if err := conn.Write(ctx, websocket.MessageText, handshakeRecord); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	_, frame, err := conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	records, err := splitRecords(frame)
	if err != nil || len(records) == 0 {
		return nil, fmt.Errorf("handshake: malformed response %q", frame)
	}

	var hs handshakeResponse
	if err := json.Unmarshal(records[0], &hs); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if hs.Error != "" {
		return nil, fmt.Errorf("handshake rejected: %s", hs.Error)
	}
	return records[1:], nil
}

// serve reads until the connection fails or the server closes it.
func (s *Subscriber) serve(conn *websocket.Conn, pending [][]byte) error {
	pingCtx, stopPing := context.WithCancel(s.ctx)
	defer stopPing()
	go s.keepalive(pingCtx, conn)

	s.dispatch(Event{Type: EventTypeConnected})
	if err := s.handleRecords(conn, pending); err != nil {
		return err
	}

	for {
		rctx, cancel := context.WithTimeout(s.ctx, serverTimeout)
		_, frame, err := conn.Read(rctx)
		cancel()
		if err != nil {
			return err
		}
		records, err := splitRecords(frame)
		if herr := s.handleRecords(conn, records); herr != nil {
			return herr
		}
		if err != nil {
			return err
		}
	}
}

func (s *Subscriber) handleRecords(conn *websocket.Conn, records [][]byte) error {
	for _, rec := range records {
		var msg hubMessage
		if err := json.Unmarshal(rec, &msg); err != nil {
			s.log.Warn("ws: undecodable hub message", "error", err)
			continue
		}

		switch msg.Type {
		case messageInvocation:
			s.dispatch(eventFromInvocation(msg))
		case messagePing:
			s.write(conn, pingRecord)
		case messageClose:
			if msg.Error != "" {
				return fmt.Errorf("hub closed: %s", msg.Error)
			}
			return errors.New("hub closed")
		case messageCompletion:
		default:
			s.log.Debug("ws: ignored hub message", "type", msg.Type)
		}
	}
	return nil
}

func (s *Subscriber) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.write(conn, pingRecord); err != nil {
				if ctx.Err() == nil {
					conn.Close(websocket.StatusGoingAway, "ping failed")
				}
				return
			}
		}
	}
}

func (s *Subscriber) write(conn *websocket.Conn, record []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, writeWait)
	defer cancel()
	err := conn.Write(ctx, websocket.MessageText, record)
	if err != nil && s.ctx.Err() == nil {
		s.log.Warn("ws: write failed", "error", err)
	}
	return err
}

func (s *Subscriber) dispatch(event Event) {
	s.mu.Lock()
	var handlers []Handler
	for sub := range s.subs {
		if event.ChatID != nil && sub.chatID != *event.ChatID {
			continue
		}
		if sub.events != nil {
			if _, ok := sub.events[event.Type]; !ok {
				continue
			}
		}
		handlers = append(handlers, sub.handler)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

// backoff doubles from minBackoff up to maxBackoff and adds up to half of
// that again as jitter.
func (s *Subscriber) backoff(attempt int) time.Duration {
	base := s.minBackoff
	for i := 1; i < attempt && base < s.maxBackoff; i++ {
		base *= 2
	}
	base = min(base, s.maxBackoff)
	return base + time.Duration(rand.Int64N(int64(base/2)+1))
}
