package ws

import (
	"bytes"
	"encoding/json"
	"errors"
)

// recordSeparator terminates every message of the JSON hub protocol.
const recordSeparator = 0x1e

// Hub protocol message types.
const (
	messageInvocation = 1
	messageCompletion = 3
	messagePing       = 6
	messageClose      = 7
)

type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

type hubMessage struct {
	Type           int               `json:"type"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

var (
	errUnterminated = errors.New("hub: record without separator")
	handshakeRecord = mustRecord(handshakeRequest{Protocol: "json", Version: 1})
	pingRecord      = mustRecord(hubMessage{Type: messagePing})
)

func encodeRecord(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, recordSeparator), nil
}

func mustRecord(v any) []byte {
	b, err := encodeRecord(v)
	if err != nil {
		panic(err)
	}
	return b
}

// splitRecords cuts one frame into its records. Every record must be
// terminated.
func splitRecords(frame []byte) ([][]byte, error) {
	var records [][]byte
	for len(frame) > 0 {
		i := bytes.IndexByte(frame, recordSeparator)
		if i < 0 {
			return records, errUnterminated
		}
		if i > 0 {
			records = append(records, frame[:i])
		}
		frame = frame[i+1:]
	}
	return records, nil
}
