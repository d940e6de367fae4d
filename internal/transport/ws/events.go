package ws

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Hub methods the server invokes on connected clients.
const (
	TargetReceiveMessage  = "ReceiveMessage"
	TargetReceiveDocument = "ReceiveDocument"
)

// EventTypeConnected is raised locally after every completed handshake.
// Pushes sent while the connection was down are lost, so listeners treat it
// like any other change.
const EventTypeConnected = "connected"

// FeedEvents are the events that may change a chat's activity feed.
var FeedEvents = []string{
	TargetReceiveMessage,
	TargetReceiveDocument,
	EventTypeConnected,
}

// Event is one hub invocation, or a local connection event. ChatID is set
// when the first argument names a chat; events without one concern every
// subscription.
type Event struct {
	Type      string
	ChatID    *uuid.UUID
	Arguments []json.RawMessage
}

func eventFromInvocation(msg hubMessage) Event {
	return Event{
		Type:      msg.Target,
		ChatID:    chatIDOf(msg.Arguments),
		Arguments: msg.Arguments,
	}
}

// chatIDOf reads a chatId field, in any letter case, from the first
// invocation argument.
func chatIDOf(args []json.RawMessage) *uuid.UUID {
	if len(args) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args[0], &fields); err != nil {
		return nil
	}
	for k, v := range fields {
		if !strings.EqualFold(k, "chatId") {
			continue
		}
		var id uuid.UUID
		if err := json.Unmarshal(v, &id); err != nil || id == uuid.Nil {
			return nil
		}
		return &id
	}
	return nil
}
