package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/hookgate/internal/auth"
	"github.com/mattjoyce/hookgate/internal/callback"
	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/dispatch"
	"github.com/mattjoyce/hookgate/internal/events"
	"github.com/mattjoyce/hookgate/internal/log"
)

// Server is the callback HTTP server.
type Server struct {
	cfg      *config.Config
	registry *dispatch.Registry
	hub      *events.Hub
	logger   *slog.Logger
	server   *http.Server
	started  time.Time

	// endpoints maps URL paths to their runtime configurations
	endpoints map[string]*Endpoint
}

// New builds a server from validated configuration. Credential sets were
// already checked by config.Load; a failure here means New was handed an
// unvalidated config and is a programming error surfaced as ErrInvalidKey.
func New(cfg *config.Config, registry *dispatch.Registry, hub *events.Hub) (*Server, error) {
	endpoints := make(map[string]*Endpoint, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		cred := cfg.Credentials[ep.CredentialRef]
		creds, err := callback.NewCredentialSet(cred.Token, cred.EncodingAESKey, cred.ReceiverID)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", ep.Path, err)
		}

		maxBody, err := config.ParseMaxBodySize(ep.MaxBodySize)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", ep.Path, err)
		}

		endpoints[ep.Path] = &Endpoint{
			Path:        ep.Path,
			Handshake:   callback.NewHandshake(creds),
			MaxBodySize: maxBody,
		}
	}

	return &Server{
		cfg:       cfg,
		registry:  registry,
		hub:       hub,
		logger:    log.WithComponent("server"),
		endpoints: endpoints,
	}, nil
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.started = time.Now()
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.cfg.Service.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("callback server starting",
		"listen", s.cfg.Service.Listen,
		"endpoints", len(s.endpoints),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("callback server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("callback server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("callback server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	for path := range s.endpoints {
		r.Get(path, s.handleChallenge)
		r.Post(path, s.handleEvent)
	}

	r.Get("/healthz", s.handleHealth)
	r.With(auth.Middleware(s.cfg.Service.StatusToken)).Get("/status", s.handleStatus)

	return r
}

// Handler returns the configured router without starting a listener.
// Used by tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// loggingMiddleware logs HTTP requests. No bodies and no query strings:
// the echostr parameter is ciphertext and stays out of the logs.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("callback request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// signatureParams pulls the three signed query parameters. Both parameter
// spellings seen across integrations are accepted.
func signatureParams(r *http.Request) (signature, timestamp, nonce string) {
	q := r.URL.Query()
	signature = q.Get("msg_signature")
	if signature == "" {
		signature = q.Get("signature")
	}
	return signature, q.Get("timestamp"), q.Get("nonce")
}

// handleChallenge answers the setup-time verification challenge: decrypt the
// echo string and return its payload as the literal response body.
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.endpoints[r.URL.Path]
	if !ok {
		s.respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	signature, timestamp, nonce := signatureParams(r)
	echostr := r.URL.Query().Get("echostr")
	if signature == "" || timestamp == "" || nonce == "" || echostr == "" {
		s.reject(w, ep, "challenge", "params")
		return
	}

	echo, err := ep.Handshake.HandleVerification(signature, timestamp, nonce, echostr)
	if err != nil {
		s.reject(w, ep, "challenge", rejectReason(err))
		return
	}

	s.hub.Publish(events.Activity{
		Endpoint: ep.Path,
		Kind:     "challenge",
		Outcome:  events.OutcomeAccepted,
	})

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write(echo)
}

// handleEvent authenticates, decrypts, and dispatches an event callback.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ep, ok := s.endpoints[r.URL.Path]
	if !ok {
		s.respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	signature, timestamp, nonce := signatureParams(r)
	if signature == "" || timestamp == "" || nonce == "" {
		s.reject(w, ep, "event", "params")
		return
	}

	limitedReader := io.LimitReader(r.Body, ep.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > ep.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	cipher, format, err := ExtractCipher(body)
	if err != nil {
		s.reject(w, ep, "event", "envelope")
		return
	}

	msg, err := ep.Handshake.HandleEvent(signature, timestamp, nonce, cipher)
	if err != nil {
		s.reject(w, ep, "event", rejectReason(err))
		return
	}

	msgType := dispatch.MessageType(msg.Payload)
	reply, err := s.registry.Dispatch(ctx, dispatch.Message{
		Endpoint:   ep.Path,
		Type:       msgType,
		Payload:    msg.Payload,
		ReceiverID: string(msg.ReceiverID),
	})
	if err != nil {
		s.logger.Error("handler failed",
			"endpoint", ep.Path,
			"msg_type", msgType,
			"error", err,
		)
		s.respondError(w, http.StatusInternalServerError, "handler failed")
		return
	}

	s.hub.Publish(events.Activity{
		Endpoint: ep.Path,
		Kind:     "event",
		Outcome:  events.OutcomeAccepted,
		MsgType:  msgType,
		Replied:  reply != nil,
	})

	if reply == nil {
		// Acknowledge without answering.
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
		return
	}

	env, err := ep.Handshake.EncryptReply(reply)
	if err != nil {
		s.logger.Error("reply encryption failed", "endpoint", ep.Path, "error", err)
		s.respondError(w, http.StatusInternalServerError, "reply failed")
		return
	}

	out, contentType, err := MarshalReply(env, format)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "reply failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		since, _ = strconv.ParseInt(v, 10, 64)
	}

	paths := make([]string, 0, len(s.endpoints))
	for path := range s.endpoints {
		paths = append(paths, path)
	}

	s.respondJSON(w, http.StatusOK, StatusResponse{
		Service:  s.cfg.Service.Name,
		Uptime:   time.Since(s.started).Truncate(time.Second).String(),
		Totals:   s.hub.Totals(),
		Recent:   s.hub.SnapshotSince(since),
		Endpoint: paths,
	})
}

// reject records and answers a per-request protocol rejection. The response
// body is always generic; the coarse reason goes to the log and the
// activity feed only.
func (s *Server) reject(w http.ResponseWriter, ep *Endpoint, kind, reason string) {
	s.logger.Warn("callback rejected",
		"endpoint", ep.Path,
		"kind", kind,
		"reason", reason,
	)
	s.hub.Publish(events.Activity{
		Endpoint: ep.Path,
		Kind:     kind,
		Outcome:  events.OutcomeRejected,
		Reason:   reason,
	})
	s.respondError(w, http.StatusBadRequest, "bad request")
}

// rejectReason maps a callback error to a coarse category safe for logs and
// the activity feed.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, callback.ErrSignatureMismatch):
		return "signature"
	case errors.Is(err, callback.ErrReceiverMismatch):
		return "receiver"
	case errors.Is(err, callback.ErrPadding), errors.Is(err, callback.ErrFrame):
		return "envelope"
	default:
		return "other"
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
