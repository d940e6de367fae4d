package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/permission"
)

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func relTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func senderName(item domain.FeedItem) string {
	var name string
	switch {
	case item.Message != nil:
		name = item.Message.SenderName
	case item.Document != nil:
		name = item.Document.SenderName
	}
	if name == "" {
		name = shortID(item.SenderID)
	}
	return name
}

// renderItem formats one feed line: "[id] when  who: what".
func renderItem(item domain.FeedItem) string {
	var body string
	switch item.Kind {
	case domain.KindMessage:
		body = item.Message.Text()
		if item.Message.EditedAt != nil && !item.Message.IsDeleted {
			body += " (edited)"
		}
		if len(item.Message.Reactions) > 0 {
			parts := make([]string, 0, len(item.Message.Reactions))
			for _, r := range slices.Sorted(maps.Keys(item.Message.Reactions)) {
				parts = append(parts, fmt.Sprintf("%s×%d", r, item.Message.Reactions[r]))
			}
			body += "  [" + strings.Join(parts, " ") + "]"
		}
	case domain.KindDocument:
		body = "shared " + item.Document.FileName
		if item.Document.Size > 0 {
			body += " (" + humanize.Bytes(uint64(item.Document.Size)) + ")"
		}
	}
	return fmt.Sprintf("[%s] %-14s %s: %s", shortID(item.ID), relTime(item.Timestamp), senderName(item), body)
}

func printChats(w io.Writer, chats []domain.Chat) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tCREATED")
	for _, c := range chats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Type, relTime(c.CreatedAt))
	}
	tw.Flush()
}

func printUsers(w io.Writer, users []domain.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLES")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.DisplayName(), u.Email, strings.Join(u.Roles, ","))
	}
	tw.Flush()
}

func printDocuments(w io.Writer, docs []domain.Document) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPLOADED")
	for _, d := range docs {
		size := "-"
		if d.Size > 0 {
			size = humanize.Bytes(uint64(d.Size))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.FileName, size, relTime(d.UploadedAt))
	}
	tw.Flush()
}

func printRules(w io.Writer, rules []domain.AccessRule, names map[uuid.UUID]string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tMASK")
	for _, r := range rules {
		subject := "-"
		switch {
		case r.UserID != nil:
			subject = "user " + r.UserID.String()
		case r.RoleID != nil:
			subject = "role " + r.RoleID.String()
			if n, ok := names[*r.RoleID]; ok {
				subject = "role " + n
			}
		}
		fmt.Fprintf(tw, "%s\t%d\n", subject, r.AccessMask)
	}
	tw.Flush()
}

// parseMask accepts "view,download", "delete-message" or a decimal mask.
func parseMask(s string, document bool) (permission.Mask, error) {
	var mask permission.Mask
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		parse := permission.Parse
		if document {
			parse = permission.ParseDocument
		}
		m, ok := parse(part)
		if !ok {
			return 0, fmt.Errorf("unknown permission %q", part)
		}
		mask |= m
	}
	return mask, nil
}
