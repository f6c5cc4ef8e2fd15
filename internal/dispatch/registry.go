package dispatch

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"log/slog"
	"strings"
	"sync"

	"github.com/mattjoyce/hookgate/internal/log"
)

//go:generate mockgen -destination=mocks/mock_handler.go -package=mocks github.com/mattjoyce/hookgate/internal/dispatch Handler

// Message is one decrypted callback delivered to a handler.
type Message struct {
	// Endpoint is the URL path of the integration that received the message.
	Endpoint string

	// Type is the message type sniffed from the payload ("text", "event",
	// ...), or "" when the payload declares none.
	Type string

	// Payload is the decrypted plaintext. Handlers must not retain it past
	// the call.
	Payload []byte

	// ReceiverID is the receiver id embedded in the decrypted frame.
	ReceiverID string
}

// Handler consumes a decrypted message and optionally produces a reply
// payload. A nil reply with a nil error acknowledges the message without
// answering it.
type Handler interface {
	Handle(ctx context.Context, msg Message) ([]byte, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) ([]byte, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) ([]byte, error) {
	return f(ctx, msg)
}

// Registry maps message types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   log.WithComponent("dispatch"),
	}
}

// Register binds a handler to a message type, replacing any previous
// binding. Message types are matched case-insensitively.
func (r *Registry) Register(msgType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[strings.ToLower(msgType)] = h
}

// Dispatch routes msg to its handler. Unhandled message types return
// (nil, nil): acknowledged, no reply.
func (r *Registry) Dispatch(ctx context.Context, msg Message) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.handlers[strings.ToLower(msg.Type)]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no handler for message type",
			"endpoint", msg.Endpoint,
			"type", msg.Type,
		)
		return nil, nil
	}

	return h.Handle(ctx, msg)
}

// MessageType sniffs the message type from a decrypted payload. Integrations
// deliver either JSON ({"msgtype": "..."} or {"MsgType": "..."}) or XML
// (<xml><MsgType>...</MsgType></xml>); payloads that are neither, or that
// declare no type, map to "".
func MessageType(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "<") {
		var doc struct {
			MsgType string `xml:"MsgType"`
		}
		if err := xml.Unmarshal([]byte(trimmed), &doc); err != nil {
			return ""
		}
		return strings.ToLower(doc.MsgType)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return ""
	}
	for _, key := range []string{"msgtype", "MsgType"} {
		if v, ok := doc[key].(string); ok && v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}
