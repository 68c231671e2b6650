package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/session"
)

const (
	// DefaultMaxUploadBytes matches the validator's default ceiling.
	DefaultMaxUploadBytes = 10 << 20

	// DefaultPollInterval is how often a status watch rereads the record.
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultRequestTimeout bounds every non-streaming request.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultSearchLimit is used when a search request has no k parameter.
	DefaultSearchLimit = 5

	// MaxSearchLimit caps the k parameter of a search request.
	MaxSearchLimit = 100

	// multipart framing allowance on top of the upload ceiling
	multipartSlack = 1 << 20
)

// Service is the document vault as seen by the HTTP layer.
type Service interface {
	Upload(ctx context.Context, owner string, r io.Reader, filename string) (*core.Artifact, error)
	Status(ctx context.Context, id string) (*core.Artifact, error)
	List(ctx context.Context, owner string) ([]*core.Artifact, error)
	Reprocess(ctx context.Context, id, owner string) (*core.Artifact, error)
	Search(ctx context.Context, owner, query string, k int) ([]*core.SearchHit, error)
	Delete(ctx context.Context, id, owner string) error
	Download(ctx context.Context, id, owner string) (*core.Artifact, io.ReadCloser, error)
}

// Server serves a Service over HTTP.
type Server struct {
	service        Service
	auth           *Authenticator
	watchers       *session.Registry[*watcher]
	upgrader       websocket.Upgrader
	router         chi.Router
	httpServer     *http.Server
	allowedOrigins []string
	maxUpload      int64
	pollInterval   time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithAllowedOrigins sets the CORS and websocket origin allow-list.
// Default is ["*"].
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) error {
		s.allowedOrigins = origins
		return nil
	}
}

// WithMaxUploadBytes sets the request body ceiling for uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) error {
		if n <= 0 {
			return errors.New("max upload bytes must be positive")
		}
		s.maxUpload = n
		return nil
	}
}

// WithPollInterval sets how often status watches reread the record.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		s.pollInterval = d
		return nil
	}
}

// WithRequestTimeout bounds non-streaming requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		s.requestTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewServer builds the router for service. Tokens are verified with secret.
func NewServer(service Service, secret string, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, ErrServiceRequired
	}
	auth, err := NewAuthenticator(secret)
	if err != nil {
		return nil, err
	}

	s := &Server{
		service:        service,
		auth:           auth,
		watchers:       session.NewRegistry[*watcher](),
		allowedOrigins: []string{"*"},
		maxUpload:      DefaultMaxUploadBytes,
		pollInterval:   DefaultPollInterval,
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "api")
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(s.allowedOrigins, "*"),
	}))

	r.Get("/health", s.health)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.auth.Middleware)

		// streaming
		api.Get("/files/{id}/watch", s.watch)
		api.Get("/files/{id}/download", s.download)

		api.Group(func(rest chi.Router) {
			rest.Use(middleware.Timeout(s.requestTimeout))
			rest.Get("/files/types", s.fileTypes)
			rest.Post("/files/upload", s.upload)
			rest.Get("/files/list", s.list)
			rest.Get("/files/status/{id}", s.status)
			rest.Post("/files/{id}/reprocess", s.reprocess)
			rest.Delete("/files/{id}", s.delete)
			rest.Get("/search", s.search)
		})
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Authenticator returns the token verifier, for issuing tokens.
func (s *Server) Authenticator() *Authenticator {
	return s.auth
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("HTTP server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every status watch and stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.watchers.Range(func(id string, w *watcher) bool {
		w.stop()
		return true
	})
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.allowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.allowedOrigins, origin)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
