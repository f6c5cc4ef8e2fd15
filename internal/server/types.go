package server

import (
	"github.com/mattjoyce/hookgate/internal/callback"
	"github.com/mattjoyce/hookgate/internal/events"
)

// Endpoint is the runtime form of one configured callback endpoint:
// validated credentials, a bound handshake evaluator, and the body limit.
type Endpoint struct {
	Path        string
	Handshake   *callback.Handshake
	MaxBodySize int64
}

// StatusResponse is the JSON served by /status.
type StatusResponse struct {
	Service  string            `json:"service"`
	Uptime   string            `json:"uptime"`
	Totals   events.Counters   `json:"totals"`
	Recent   []events.Activity `json:"recent"`
	Endpoint []string          `json:"endpoints"`
}

// ErrorResponse is the JSON body of a rejected request. Always generic:
// callers learn that the request was rejected, never why in detail.
type ErrorResponse struct {
	Error string `json:"error"`
}
