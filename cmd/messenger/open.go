package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/service"
	"github.com/vedran77/pulse-messenger/internal/transport/ws"
)

const openHelp = `Type a message and press enter to send it. Commands:
  /older                  load the previous page
  /refresh                reload the newest page
  /edit <id> <text>       edit one of your messages
  /delete <id>            delete a message or document
  /react <id> <type>      react to a message
  /unreact <id>           remove your reaction
  /upload <path>          share a file
  /download <id> [dir]    save a shared document
  /list                   print the loaded feed
  /quit                   leave the chat`

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <chat>",
		Short: "Open a chat and follow it live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				return runChat(cmd.Context(), a, args[0])
			})
		},
	}
}

func runChat(ctx context.Context, a *app, ref string) error {
	chat, err := a.chats.Find(ctx, ref)
	if err != nil {
		return err
	}

	feed := service.NewFeedService(a.activity, a.cfg.PageSize, a.log)
	defer feed.Close()
	msgs := service.NewMessageService(a.messages, a.documents, feed, a.session, a.log)

	view := newFeedView(os.Stdout)
	feed.OnChange(view.update)

	// A failed mask lookup only hides privileged actions.
	if mask, err := a.chats.Permissions(ctx, chat.ID); err != nil {
		a.log.Warn("could not load chat permissions", "chat_id", chat.ID, "error", err)
	} else {
		msgs.SetPermissions(chat.ID, mask)
	}

	wsURL := a.cfg.WSURL
	if wsURL == "" {
		if wsURL, err = ws.URLFromAPI(a.cfg.APIURL); err != nil {
			return err
		}
	}
	sub, err := ws.NewSubscriber(a.session, ws.Options{
		URL:        wsURL,
		MaxBackoff: a.cfg.MaxBackoff,
		Logger:     a.log,
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	// Bound before the first load: a push landing in between still
	// triggers a refresh.
	live := service.NewLiveSync(sub, feed, a.log)
	if err := live.Bind(chat.ID); err != nil {
		a.log.Warn("live updates unavailable", "error", err)
	}
	defer live.Unbind()

	fmt.Printf("== %s (%s) ==\n", chat.Name, chat.Type)
	if err := feed.Select(ctx, chat.ID); err != nil {
		return fmt.Errorf("loading %s: %w", chat.Name, err)
	}

	fmt.Println("Type /help for commands.")
	lines := readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, a, feed, msgs, line)
			if err != nil {
				printError(err)
			}
			if quit {
				return nil
			}
		}
	}
}

// readLines feeds stdin into a channel so the loop can also watch ctx.
func readLines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			line, err := stdin.ReadString('\n')
			if line = strings.TrimRight(line, "\r\n"); line != "" {
				select {
				case out <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

func handleLine(ctx context.Context, a *app, feed *service.FeedService, msgs *service.MessageService, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, msgs.Send(ctx, line)
	}

	command, rest, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	rest = strings.TrimSpace(rest)

	switch command {
	case "quit", "q", "exit":
		return true, nil
	case "help":
		fmt.Println(openHelp)
	case "older":
		loaded, err := feed.LoadOlder(ctx)
		if err != nil {
			return false, err
		}
		if !loaded {
			fmt.Println("No older activity.")
		}
	case "refresh":
		return false, feed.Refresh(ctx)
	case "list":
		snap := feed.Snapshot()
		for _, item := range snap.Items {
			fmt.Println(renderItem(item))
		}
		fmt.Printf("-- %d items, %s --\n", len(snap.Items), snap.State)
	case "edit":
		ref, text, _ := strings.Cut(rest, " ")
		item, err := findItem(feed, ref)
		if err != nil {
			return false, err
		}
		if !msgs.Actions(item).CanEdit {
			return false, errors.New("you can only edit your own messages")
		}
		return false, msgs.Edit(ctx, item, strings.TrimSpace(text))
	case "delete":
		item, err := findItem(feed, rest)
		if err != nil {
			return false, err
		}
		if !msgs.Actions(item).CanDelete {
			fmt.Println("You may not have permission to delete this; asking the server anyway.")
		}
		return false, msgs.Delete(ctx, item)
	case "react", "unreact":
		ref, reaction, _ := strings.Cut(rest, " ")
		item, err := findItem(feed, ref)
		if err != nil {
			return false, err
		}
		if item.Kind != domain.KindMessage {
			return false, errors.New("only messages take reactions")
		}
		if command == "unreact" {
			return false, msgs.Unreact(ctx, item.ID)
		}
		return false, msgs.React(ctx, item.ID, reaction)
	case "upload":
		return false, msgs.UploadFile(ctx, rest)
	case "download":
		ref, dir, _ := strings.Cut(rest, " ")
		item, err := findItem(feed, ref)
		if err != nil {
			return false, err
		}
		if item.Document == nil {
			return false, errors.New("not a document")
		}
		if dir = strings.TrimSpace(dir); dir == "" {
			dir = "."
		}
		path, err := a.docs.Download(ctx, *item.Document, dir)
		if err != nil {
			return false, err
		}
		fmt.Printf("Saved %s\n", path)
	default:
		return false, fmt.Errorf("unknown command /%s (try /help)", command)
	}
	return false, nil
}

// findItem resolves a full id or an unambiguous id prefix against the
// loaded feed.
func findItem(feed *service.FeedService, ref string) (domain.FeedItem, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return domain.FeedItem{}, errors.New("missing item id")
	}
	if id, err := uuid.Parse(ref); err == nil {
		if item, ok := feed.Item(id); ok {
			return item, nil
		}
		return domain.FeedItem{}, fmt.Errorf("no loaded item %s", ref)
	}

	var (
		found domain.FeedItem
		n     int
	)
	for _, item := range feed.Snapshot().Items {
		if strings.HasPrefix(item.ID.String(), ref) {
			found = item
			n++
		}
	}
	switch n {
	case 0:
		return domain.FeedItem{}, fmt.Errorf("no loaded item %s", ref)
	case 1:
		return found, nil
	default:
		return domain.FeedItem{}, fmt.Errorf("id %s is ambiguous", ref)
	}
}

// feedView prints items as they appear or change.
type feedView struct {
	out io.Writer

	mu      sync.Mutex
	chatID  uuid.UUID
	shown   map[uuid.UUID]string
	state   service.FeedState
	sending bool
	notice  error
}

func newFeedView(out io.Writer) *feedView {
	return &feedView{out: out, shown: make(map[uuid.UUID]string)}
}

func (v *feedView) update(snap service.FeedSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if snap.ChatID != v.chatID {
		v.chatID = snap.ChatID
		clear(v.shown)
	}

	for _, item := range snap.Items {
		line := renderItem(item)
		prev, seen := v.shown[item.ID]
		if seen && prev == line {
			continue
		}
		v.shown[item.ID] = line
		if seen {
			line = "~ " + line
		}
		fmt.Fprintln(v.out, line)
	}

	if snap.State != v.state {
		v.state = snap.State
		if snap.State == service.FeedFailed && snap.Err != nil {
			fmt.Fprintf(v.out, "!! could not load chat: %v (try /refresh)\n", snap.Err)
		}
	}
	if snap.Sending != v.sending {
		v.sending = snap.Sending
		if snap.Sending {
			fmt.Fprintln(v.out, "... sending")
		}
	}
	if snap.Notice != nil && !errors.Is(snap.Notice, v.notice) {
		fmt.Fprintf(v.out, "!! %v\n", snap.Notice)
	}
	v.notice = snap.Notice
}
