package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattjoyce/intercom-event/internal/event"
	"github.com/mattjoyce/intercom-event/internal/log"
	"github.com/mattjoyce/intercom-event/internal/notify"
)

// Server represents the webhook HTTP server.
type Server struct {
	config     Config
	dispatcher Instrumenter
	logger     *slog.Logger
	server     *http.Server

	hub          *notify.Hub
	namespace    notify.Namespace
	keepAlive    time.Duration
	errorHandler ErrorHandler
}

// DefaultKeepAlive is the comment interval on idle event streams.
const DefaultKeepAlive = 15 * time.Second

// Option customizes a Server.
type Option func(*Server)

// WithHub exposes hub notifications under ns on GET /events.
func WithHub(hub *notify.Hub, ns notify.Namespace) Option {
	return func(s *Server) {
		s.hub = hub
		s.namespace = ns
	}
}

// WithErrorHandler replaces the handler for unclassified dispatch errors.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Server) {
		if h != nil {
			s.errorHandler = h
		}
	}
}

// New creates a new webhook server instance.
func New(config Config, dispatcher Instrumenter, logger *slog.Logger, opts ...Option) *Server {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = DefaultSignatureHeader
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if logger == nil {
		logger = log.WithComponent("webhook")
	}

	s := &Server{
		config:     config,
		dispatcher: dispatcher,
		logger:     logger,
		namespace:  notify.NewNamespace(notify.DefaultNamespace),
		keepAlive:  DefaultKeepAlive,
	}
	s.errorHandler = s.defaultErrorHandler
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "path", s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the HTTP router, for mounting or tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post(s.config.Path, s.handleEvent)
	r.Get("/healthz", s.handleHealth)
	if s.hub != nil {
		r.Get("/events", s.handleStream)
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleEvent authenticates the request, dispatches it and maps the outcome
// to a status code.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	if s.config.SigningSecret != "" {
		signature := r.Header.Get(s.config.SignatureHeader)
		if err := verifyHMACSignature(body, signature, s.config.SigningSecret); err != nil {
			s.logger.Warn("webhook signature verification failed",
				"path", r.URL.Path,
				"header", s.config.SignatureHeader,
			)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	params, err := parseParams(r, body)
	if err != nil {
		s.logger.Warn("webhook params rejected", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	res, err := s.dispatcher.Instrument(r.Context(), params)
	if err != nil {
		if event.IsUnauthorized(err) {
			s.logger.Error(err.Error(),
				"dispatch_id", res.DispatchID,
				"trace", log.ErrorChain(err),
			)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.errorHandler(w, r, err)
		return
	}

	s.logger.Debug("webhook dispatched",
		"dispatch_id", res.DispatchID,
		"topic", res.Topic,
		"ignored", res.Ignored,
		"handlers", res.Handled,
	)
	w.WriteHeader(http.StatusOK)
}

// authenticate enforces the shared secret when one is configured. It writes
// the 401 itself and reports whether the request may continue.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) bool {
	secret := s.dispatcher.Secret()
	if secret == "" {
		return true
	}
	_, password, ok := r.BasicAuth()
	if ok && secretsEqual(password, secret) {
		return true
	}

	s.logger.Warn("webhook credential rejected",
		"path", r.URL.Path,
		"credential_present", ok,
	)
	w.Header().Set("WWW-Authenticate", `Basic realm="Application"`)
	w.WriteHeader(http.StatusUnauthorized)
	return false
}

func (s *Server) defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("unhandled dispatch error",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
		"trace", log.ErrorChain(err),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseParams merges JSON object fields, form fields and query values into
// one bag. Later sources win: body first, then the query string.
func parseParams(r *http.Request, body []byte) (event.Params, error) {
	params := event.Params{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if len(body) > 0 {
			var fields map[string]any
			if err := json.Unmarshal(body, &fields); err != nil {
				return nil, fmt.Errorf("decode JSON body: %w", err)
			}
			for k, v := range fields {
				params[k] = v
			}
		}
	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("decode form body: %w", err)
		}
		mergeValues(params, form)
	}

	mergeValues(params, r.URL.Query())
	return params, nil
}

func mergeValues(params event.Params, values url.Values) {
	for k, v := range values {
		switch len(v) {
		case 0:
		case 1:
			params[k] = v[0]
		default:
			params[k] = append([]string(nil), v...)
		}
	}
}
