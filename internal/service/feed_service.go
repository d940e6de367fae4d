package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/repository"
)

const DefaultPageSize = 20

type FeedState int

const (
	FeedEmpty FeedState = iota
	FeedLoadingInitial
	FeedReady
	FeedLoadingOlder
	FeedFailed
)

func (s FeedState) String() string {
	switch s {
	case FeedEmpty:
		return "empty"
	case FeedLoadingInitial:
		return "loading"
	case FeedReady:
		return "ready"
	case FeedLoadingOlder:
		return "loading-older"
	case FeedFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FeedSnapshot is a copy of the feed at one point in time. Err is the reason
// the initial load failed; Notice is the last dismissible read error.
type FeedSnapshot struct {
	ChatID  uuid.UUID
	Items   []domain.FeedItem
	Cursor  domain.Cursor
	State   FeedState
	Sending bool
	Err     error
	Notice  error
}

// FeedService keeps the activity feed of the selected chat in sync with the
// server. The lock is never held across a fetch; responses carry the
// generation they were issued under and are dropped once it has moved on.
type FeedService struct {
	activity repository.ActivityRepository
	pageSize int
	log      *slog.Logger

	mu        sync.Mutex
	chatID    uuid.UUID
	gen       uint64
	seq       uint64
	applied   uint64
	items     []domain.FeedItem
	cursor    domain.Cursor
	state     FeedState
	sending   int
	loadErr   error
	notice    error
	observers []func(FeedSnapshot)
}

func NewFeedService(activity repository.ActivityRepository, pageSize int, log *slog.Logger) *FeedService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &FeedService{
		activity: activity,
		pageSize: pageSize,
		log:      log,
		cursor:   domain.Cursor{PageSize: pageSize},
	}
}

// OnChange registers fn to be called with a fresh snapshot after every
// applied transition.
func (s *FeedService) OnChange(fn func(FeedSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Select discards the current feed and loads the newest page of chatID.
// A failed load leaves the feed empty in the Failed state.
func (s *FeedService) Select(ctx context.Context, chatID uuid.UUID) error {
	if chatID == uuid.Nil {
		return domain.ErrNoChatSelected
	}

	s.mu.Lock()
	s.gen++
	s.chatID = chatID
	s.items = nil
	s.cursor = domain.Cursor{PageSize: s.pageSize}
	s.state = FeedLoadingInitial
	s.loadErr = nil
	s.notice = nil
	gen, seq := s.gen, s.nextSeq()
	s.mu.Unlock()
	s.notify()

	s.log.Debug("feed: loading chat", "chat_id", chatID)
	page, err := s.activity.FetchPage(ctx, chatID, 0, s.pageSize)
	s.applyWindow(gen, seq, page, err, true)
	return err
}

// Refresh refetches the newest window and merges it in place: known ids
// take the fetched content, new ids are added. The cursor is not moved.
func (s *FeedService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	chatID := s.chatID
	s.mu.Unlock()
	return s.refresh(ctx, chatID)
}

// refresh is a no-op unless chatID is still the selected chat.
func (s *FeedService) refresh(ctx context.Context, chatID uuid.UUID) error {
	s.mu.Lock()
	if chatID == uuid.Nil || chatID != s.chatID || s.state == FeedEmpty {
		s.mu.Unlock()
		return nil
	}
	gen, seq := s.gen, s.nextSeq()
	s.mu.Unlock()

	page, err := s.activity.FetchPage(ctx, chatID, 0, s.pageSize)
	s.applyWindow(gen, seq, page, err, false)
	return err
}

// LoadOlder fetches the page before the oldest loaded one. It reports false
// without fetching unless the feed is ready and more pages exist.
func (s *FeedService) LoadOlder(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.chatID == uuid.Nil {
		s.mu.Unlock()
		return false, domain.ErrNoChatSelected
	}
	if s.state != FeedReady || !s.cursor.HasMore {
		s.mu.Unlock()
		return false, nil
	}
	s.state = FeedLoadingOlder
	gen, chatID := s.gen, s.chatID
	offset := s.cursor.Offset + s.pageSize
	s.mu.Unlock()
	s.notify()

	page, err := s.activity.FetchPage(ctx, chatID, offset, s.pageSize)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.log.Debug("feed: dropped stale older page", "chat_id", chatID)
		return false, nil
	}
	s.state = FeedReady
	if err != nil {
		s.notice = err
		s.mu.Unlock()
		s.notify()
		s.log.Warn("feed: loading older page failed", "chat_id", chatID, "error", err)
		return false, err
	}

	known := make(map[uuid.UUID]struct{}, len(s.items))
	for _, it := range s.items {
		known[it.ID] = struct{}{}
	}
	for _, it := range page {
		if _, ok := known[it.ID]; ok {
			continue
		}
		known[it.ID] = struct{}{}
		s.items = append(s.items, it)
	}
	sortFeed(s.items)
	s.cursor.Offset = offset
	s.cursor.HasMore = len(page) == s.pageSize
	s.mu.Unlock()
	s.notify()
	return true, nil
}

// applyWindow installs or merges a newest-window response.
func (s *FeedService) applyWindow(gen, seq uint64, page []domain.FeedItem, err error, initial bool) {
	s.mu.Lock()
	if gen != s.gen || seq <= s.applied {
		s.mu.Unlock()
		s.log.Debug("feed: dropped stale window", "gen", gen, "seq", seq)
		return
	}

	if err != nil {
		if initial || s.state == FeedFailed {
			s.state = FeedFailed
			s.items = nil
			s.loadErr = err
		} else {
			s.notice = err
		}
		s.mu.Unlock()
		s.notify()
		s.log.Warn("feed: fetch failed", "initial", initial, "error", err)
		return
	}

	s.applied = seq
	switch s.state {
	case FeedLoadingInitial, FeedFailed:
		s.items = mergeWindow(nil, page)
		s.cursor.HasMore = len(page) == s.pageSize
		s.state = FeedReady
		s.loadErr = nil
	default:
		s.items = mergeWindow(s.items, page)
	}
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a copy of the current feed.
func (s *FeedService) Snapshot() FeedSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *FeedService) ChatID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Item looks up a loaded item by id.
func (s *FeedService) Item(id uuid.UUID) (domain.FeedItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.FeedItem{}, false
}

func (s *FeedService) DismissNotice() {
	s.mu.Lock()
	s.notice = nil
	s.mu.Unlock()
	s.notify()
}

// Close discards the feed. Responses still in flight are dropped.
func (s *FeedService) Close() {
	s.mu.Lock()
	s.gen++
	s.chatID = uuid.Nil
	s.items = nil
	s.cursor = domain.Cursor{PageSize: s.pageSize}
	s.state = FeedEmpty
	s.loadErr = nil
	s.notice = nil
	s.mu.Unlock()
	s.notify()
}

// trackSend raises the sending flag until the returned func is called.
func (s *FeedService) trackSend() func() {
	s.mu.Lock()
	s.sending++
	s.mu.Unlock()
	s.notify()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.sending--
			s.mu.Unlock()
			s.notify()
		})
	}
}

func (s *FeedService) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *FeedService) snapshotLocked() FeedSnapshot {
	return FeedSnapshot{
		ChatID:  s.chatID,
		Items:   slices.Clone(s.items),
		Cursor:  s.cursor,
		State:   s.state,
		Sending: s.sending > 0,
		Err:     s.loadErr,
		Notice:  s.notice,
	}
}

func (s *FeedService) notify() {
	s.mu.Lock()
	observers := slices.Clone(s.observers)
	var snap FeedSnapshot
	if len(observers) > 0 {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// mergeWindow overwrites entries whose id reappears and adds the rest.
func mergeWindow(items, page []domain.FeedItem) []domain.FeedItem {
	pos := make(map[uuid.UUID]int, len(items)+len(page))
	for i, it := range items {
		pos[it.ID] = i
	}
	for _, it := range page {
		if i, ok := pos[it.ID]; ok {
			items[i] = it
			continue
		}
		pos[it.ID] = len(items)
		items = append(items, it)
	}
	sortFeed(items)
	return items
}

func sortFeed(items []domain.FeedItem) {
	slices.SortFunc(items, func(a, b domain.FeedItem) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
}
