// Package ipc carries control requests from a second hotkeyd invocation to
// the running daemon: one JSON line in, one JSON line out, per connection.
package ipc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"hotkeyd/internal/userutil"
)

// Control commands understood by the daemon.
const (
	CommandReload = "reload"
	CommandStatus = "status"
	CommandStop   = "stop"
)

// endpointEnv overrides the default endpoint when it passes endpointPattern.
const endpointEnv = "HOTKEYD_ENDPOINT"

// Request is a single control request.
type Request struct {
	Command string `json:"command"`
}

// Binding states reported by status.
const (
	StateActive   = "active"
	StateFailed   = "failed"
	StateDisabled = "disabled"
)

// BindingStatus describes one configured binding in the running generation.
type BindingStatus struct {
	Name   string `json:"name"`
	Hotkey string `json:"hotkey"`
	ID     int32  `json:"id,omitempty"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

// Event is a warning or error the daemon logged recently.
type Event struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Response is a control response.
type Response struct {
	OK       bool            `json:"ok"`
	Message  string          `json:"message,omitempty"`
	Bindings []BindingStatus `json:"bindings,omitempty"`
	Events   []Event         `json:"events,omitempty"`
}

// Handler executes a control request and returns a response.
type Handler interface {
	Handle(req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req Request) Response

// Handle calls f(req).
func (f HandlerFunc) Handle(req Request) Response { return f(req) }

// DefaultEndpoint returns the control endpoint to use. If HOTKEYD_ENDPOINT is
// set and passes pattern validation, its value is used; otherwise a per-user
// default is constructed from the current username.
func DefaultEndpoint() string {
	if v, ok := trustedEndpointFromEnv(); ok {
		return v
	}
	return defaultEndpointFor(userutil.CurrentUsername())
}

func trustedEndpointFromEnv() (string, bool) {
	value := strings.TrimSpace(os.Getenv(endpointEnv))
	if value == "" {
		return "", false
	}
	if !endpointPattern.MatchString(value) {
		slog.Warn("[WARN-IPC] "+endpointEnv+" rejected: value does not match allowed pattern", "value", value)
		return "", false
	}
	return value, true
}

func encodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	req.Command = strings.ToLower(strings.TrimSpace(req.Command))
	if req.Command == "" {
		return Request{}, errors.New("command is required")
	}
	return req, nil
}

func encodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
