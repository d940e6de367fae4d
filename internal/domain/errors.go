package domain

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrAuthExpired marks a request the server rejected as unauthorized.
	ErrAuthExpired = errors.New("authorization expired")
	// ErrSessionTerminated is returned once the token could not be refreshed
	// and the local session has been torn down.
	ErrSessionTerminated = errors.New("session terminated")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNoChatSelected    = errors.New("no chat selected")
)

// ValidationError is raised before any request leaves the client.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// TransportError covers connectivity failures and responses whose shape does
// not match what the client expects.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx answer from the server.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, msg)
}

// Is lets errors.Is(err, ErrAuthExpired) match a 401.
func (e *RemoteError) Is(target error) bool {
	return target == ErrAuthExpired && e.Status == http.StatusUnauthorized
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

func IsRemote(err error) bool {
	var r *RemoteError
	return errors.As(err, &r)
}

// RemoteStatus returns the HTTP status of a RemoteError in the chain, or 0.
func RemoteStatus(err error) int {
	var r *RemoteError
	if errors.As(err, &r) {
		return r.Status
	}
	return 0
}
