package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/repository"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(minute int) time.Time {
	return epoch.Add(time.Duration(minute) * time.Minute)
}

func msg(sender uuid.UUID, minute int, content string) domain.FeedItem {
	id := uuid.New()
	return domain.FeedItem{
		Kind:      domain.KindMessage,
		ID:        id,
		Timestamp: at(minute),
		SenderID:  sender,
		Message:   &domain.Message{ID: id, SenderID: sender, Content: content, SentAt: at(minute)},
	}
}

func doc(sender uuid.UUID, minute int, name string) domain.FeedItem {
	id := uuid.New()
	return domain.FeedItem{
		Kind:      domain.KindDocument,
		ID:        id,
		Timestamp: at(minute),
		SenderID:  sender,
		Document:  &domain.Document{ID: id, SenderID: sender, FileName: name, UploadedAt: at(minute)},
	}
}

func withContent(item domain.FeedItem, content string) domain.FeedItem {
	m := *item.Message
	m.Content = content
	item.Message = &m
	return item
}

type fetchCall struct {
	chatID   uuid.UUID
	offset   int
	pageSize int
}

// fakeActivity serves newest-first windows over an in-memory feed per chat.
type fakeActivity struct {
	mu    sync.Mutex
	feeds map[uuid.UUID][]domain.FeedItem
	calls []fetchCall
	err   error

	// pages, when set for a chat, answers window fetches in order instead of
	// slicing the feed.
	pages map[uuid.UUID][][]domain.FeedItem

	// gate runs before a fetch returns and may block it.
	gate func(fetchCall)
}

func newFakeActivity() *fakeActivity {
	return &fakeActivity{
		feeds: make(map[uuid.UUID][]domain.FeedItem),
		pages: make(map[uuid.UUID][][]domain.FeedItem),
	}
}

func (f *fakeActivity) put(chatID uuid.UUID, items ...domain.FeedItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[chatID] = append(f.feeds[chatID], items...)
}

// replace swaps an item for a new version with the same id.
func (f *fakeActivity) replace(chatID uuid.UUID, item domain.FeedItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.feeds[chatID] {
		if it.ID == item.ID {
			f.feeds[chatID][i] = item
		}
	}
}

func (f *fakeActivity) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeActivity) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeActivity) FetchPage(ctx context.Context, chatID uuid.UUID, offset, pageSize int) ([]domain.FeedItem, error) {
	call := fetchCall{chatID: chatID, offset: offset, pageSize: pageSize}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		gate(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if queue := f.pages[chatID]; len(queue) > 0 {
		f.pages[chatID] = queue[1:]
		return append([]domain.FeedItem(nil), queue[0]...), nil
	}

	items := append([]domain.FeedItem(nil), f.feeds[chatID]...)
	sort.Slice(items, func(i, j int) bool { return items[j].Before(items[i]) })
	if offset >= len(items) {
		return []domain.FeedItem{}, nil
	}
	end := min(offset+pageSize, len(items))
	return items[offset:end], nil
}

// fakeMessages applies writes to a fakeActivity the way the server would.
type fakeMessages struct {
	mu        sync.Mutex
	activity  *fakeActivity
	user      uuid.UUID
	calls     []string
	err       error
	failOn    string
	sent      int
	reactions map[uuid.UUID][]domain.Reaction
}

func newFakeMessages(activity *fakeActivity, user uuid.UUID) *fakeMessages {
	return &fakeMessages{activity: activity, user: user, reactions: make(map[uuid.UUID][]domain.Reaction)}
}

func (f *fakeMessages) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.failOn != "" && f.failOn == call {
		return errors.New(call + " failed")
	}
	return f.err
}

func (f *fakeMessages) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeMessages) Send(ctx context.Context, chatID uuid.UUID, content string) error {
	if err := f.record("send"); err != nil {
		return err
	}
	f.mu.Lock()
	f.sent++
	minute := 1000 + f.sent
	f.mu.Unlock()
	f.activity.put(chatID, msg(f.user, minute, content))
	return nil
}

func (f *fakeMessages) Edit(ctx context.Context, messageID uuid.UUID, content string) error {
	if err := f.record("edit"); err != nil {
		return err
	}
	f.activity.mu.Lock()
	defer f.activity.mu.Unlock()
	for chatID, items := range f.activity.feeds {
		for i, it := range items {
			if it.ID == messageID {
				f.activity.feeds[chatID][i] = withContent(it, content)
			}
		}
	}
	return nil
}

func (f *fakeMessages) Delete(ctx context.Context, messageID uuid.UUID) error {
	if err := f.record("delete"); err != nil {
		return err
	}
	f.activity.mu.Lock()
	defer f.activity.mu.Unlock()
	for chatID, items := range f.activity.feeds {
		for i, it := range items {
			if it.ID == messageID {
				m := *it.Message
				m.IsDeleted = true
				it.Message = &m
				f.activity.feeds[chatID][i] = it
			}
		}
	}
	return nil
}

func (f *fakeMessages) Reactions(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error) {
	if err := f.record("reactions"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Reaction(nil), f.reactions[messageID]...), nil
}

func (f *fakeMessages) AddReaction(ctx context.Context, messageID uuid.UUID, reactionType string) error {
	if err := f.record("react:" + reactionType); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[messageID] = append(f.reactions[messageID], domain.Reaction{MessageID: messageID, UserID: f.user, ReactionType: reactionType})
	return nil
}

func (f *fakeMessages) RemoveReaction(ctx context.Context, messageID uuid.UUID) error {
	if err := f.record("unreact"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.reactions[messageID][:0]
	for _, r := range f.reactions[messageID] {
		if r.UserID != f.user {
			kept = append(kept, r)
		}
	}
	f.reactions[messageID] = kept
	return nil
}

type fakeDocuments struct {
	mu       sync.Mutex
	activity *fakeActivity
	user     uuid.UUID
	calls    []string
	uploaded map[string][]byte
	err      error

	rules   []domain.AccessRule
	changes []string
	files   map[uuid.UUID][]byte
}

func newFakeDocuments(activity *fakeActivity, user uuid.UUID) *fakeDocuments {
	return &fakeDocuments{
		activity: activity,
		user:     user,
		uploaded: make(map[string][]byte),
		files:    make(map[uuid.UUID][]byte),
	}
}

func (f *fakeDocuments) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeDocuments) Upload(ctx context.Context, chatID uuid.UUID, fileName string, r io.Reader) error {
	if err := f.record("upload"); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.uploaded[fileName] = data
	f.mu.Unlock()
	if f.activity != nil {
		f.activity.put(chatID, doc(f.user, 2000, fileName))
	}
	return nil
}

func (f *fakeDocuments) Download(ctx context.Context, documentID uuid.UUID, w io.Writer) error {
	if err := f.record("download"); err != nil {
		return err
	}
	f.mu.Lock()
	data, ok := f.files[documentID]
	f.mu.Unlock()
	if !ok {
		return &domain.RemoteError{Status: http.StatusNotFound}
	}
	_, err := w.Write(data)
	return err
}

func (f *fakeDocuments) Delete(ctx context.Context, documentID uuid.UUID) error {
	return f.record("delete-document")
}

func (f *fakeDocuments) ListByChat(ctx context.Context, chatID uuid.UUID) ([]domain.Document, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	var docs []domain.Document
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.files {
		docs = append(docs, domain.Document{ID: id, ChatID: chatID, FileName: id.String() + ".bin"})
	}
	return docs, nil
}

func (f *fakeDocuments) AccessRules(ctx context.Context, documentID uuid.UUID) ([]domain.AccessRule, error) {
	if err := f.record("rules"); err != nil {
		return nil, err
	}
	return f.rules, nil
}

func (f *fakeDocuments) GrantAccess(ctx context.Context, documentID, roleID uuid.UUID, flag uint32) error {
	f.mu.Lock()
	f.changes = append(f.changes, "grant:"+flagName(flag))
	f.mu.Unlock()
	return f.record("grant")
}

func (f *fakeDocuments) RevokeAccess(ctx context.Context, documentID, roleID uuid.UUID, flag uint32) error {
	f.mu.Lock()
	f.changes = append(f.changes, "revoke:"+flagName(flag))
	f.mu.Unlock()
	return f.record("revoke")
}

func flagName(flag uint32) string {
	switch flag {
	case 1:
		return "view"
	case 2:
		return "download"
	case 4:
		return "delete"
	default:
		return "other"
	}
}

type fakeChats struct {
	mu           sync.Mutex
	chats        map[uuid.UUID]domain.Chat
	participants map[uuid.UUID][]domain.Participant
	rules        map[uuid.UUID][]domain.AccessRule
	grants       []uint32
	err          error
}

func newFakeChats() *fakeChats {
	return &fakeChats{
		chats:        make(map[uuid.UUID]domain.Chat),
		participants: make(map[uuid.UUID][]domain.Participant),
		rules:        make(map[uuid.UUID][]domain.AccessRule),
	}
}

func (f *fakeChats) List(ctx context.Context) ([]domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chat
	for _, c := range f.chats {
		out = append(out, c)
	}
	return out, f.err
}

func (f *fakeChats) Get(ctx context.Context, chatID uuid.UUID) (*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[chatID]
	if !ok {
		return nil, &domain.RemoteError{Status: http.StatusNotFound}
	}
	return &c, nil
}

func (f *fakeChats) Create(ctx context.Context, name string, chatType domain.ChatType) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	id := uuid.New()
	f.chats[id] = domain.Chat{ID: id, Name: name, Type: chatType}
	return id, nil
}

func (f *fakeChats) Rename(ctx context.Context, chatID uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.chats[chatID]
	c.Name = name
	f.chats[chatID] = c
	return nil
}

func (f *fakeChats) Delete(ctx context.Context, chatID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chats, chatID)
	return nil
}

func (f *fakeChats) Participants(ctx context.Context, chatID uuid.UUID) ([]domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants[chatID], nil
}

func (f *fakeChats) AddParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants[chatID] = append(f.participants[chatID], domain.Participant{UserID: userID})
	return nil
}

func (f *fakeChats) RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	return nil
}

func (f *fakeChats) SetAdmin(ctx context.Context, chatID, userID uuid.UUID, isAdmin bool) error {
	return nil
}

func (f *fakeChats) AccessRules(ctx context.Context, chatID uuid.UUID) ([]domain.AccessRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rules[chatID], nil
}

func (f *fakeChats) GrantAccess(ctx context.Context, chatID, roleID uuid.UUID, flag uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants = append(f.grants, flag)
	return nil
}

func (f *fakeChats) RevokeAccess(ctx context.Context, chatID, roleID uuid.UUID, flag uint32) error {
	return nil
}

type staticUser uuid.UUID

func (u staticUser) UserID() uuid.UUID { return uuid.UUID(u) }

var (
	_ repository.ActivityRepository = (*fakeActivity)(nil)
	_ repository.MessageRepository  = (*fakeMessages)(nil)
	_ repository.DocumentRepository = (*fakeDocuments)(nil)
	_ repository.ChatRepository     = (*fakeChats)(nil)
)
