// Package api exposes characters, memories, conversations and settings over
// HTTP for the phone UI, plus a websocket stream of conversation events.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bdobrica/aether/internal/aether/character"
	"github.com/bdobrica/aether/internal/aether/chat"
	"github.com/bdobrica/aether/internal/aether/config"
	"github.com/bdobrica/aether/internal/aether/llm"
	"github.com/bdobrica/aether/internal/aether/memory"
)

// Store is the persistence the API reads and writes directly.
type Store interface {
	CreateCharacter(ctx context.Context, p *character.Profile) error
	GetCharacter(ctx context.Context, id string) (*character.Profile, error)
	ListCharacters(ctx context.Context) ([]*character.Profile, error)
	UpdateCharacter(ctx context.Context, p *character.Profile) error
	DeleteCharacter(ctx context.Context, id string) error
	ReplaceFragments(ctx context.Context, charID string, fragments []memory.Fragment) error
	GetRefinedIndex(ctx context.Context, charID string) (memory.RefinedIndex, error)
	ListFragments(ctx context.Context, charID string) ([]memory.Fragment, error)

	AppendMessage(ctx context.Context, charID string, role chat.Role, typ chat.Type, content string, metadata map[string]any) (chat.Message, error)
	ListRecentMessages(ctx context.Context, charID string, n int) ([]chat.Message, error)
	ClearMessages(ctx context.Context, charID string) (int64, error)
}

// Archivist is the memory tooling behind the memories routes.
type Archivist interface {
	Tree(ctx context.Context, charID string) (memory.Tree, memory.Stats, error)
	Refine(ctx context.Context, charID, year, month string) (key, summary string, err error)
	Import(ctx context.Context, charID, text string) ([]memory.Fragment, error)
}

// Conversations starts reply cycles and reports their status.
type Conversations interface {
	SendAsync(ctx context.Context, charID string, in chat.Input, done func(*chat.Result, error)) error
	RegenerateAsync(ctx context.Context, charID string, done func(*chat.Result, error)) error
	Status(charID string) chat.Status
}

// Endpoint is the live completion client reconfigured by the settings
// route.
type Endpoint interface {
	SetConfig(llm.Config)
	Config() llm.Config
}

// Deps wires the server.
type Deps struct {
	Store     Store
	Archivist Archivist
	Engine    Conversations
	Hub       *Hub
	Settings  config.Store
	Endpoint  Endpoint
	// BootLLM is the endpoint configuration before runtime settings apply.
	BootLLM llm.Config
	// Metrics, when non-nil, is mounted at /metrics and wraps every route.
	Metrics MetricsHandler
	Version string
	Logger  *slog.Logger
}

// MetricsHandler is implemented by metrics.Manager.
type MetricsHandler interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// Server is the HTTP API.
type Server struct {
	Deps
	logger    *slog.Logger
	router    chi.Router
	startedAt time.Time
	server    *http.Server
}

// NewServer builds the router. It does not listen.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if d.Hub == nil {
		d.Hub = NewHub(logger)
	}
	s := &Server{Deps: d, logger: logger, startedAt: time.Now()}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler so the API can be tested with
// httptest.NewRecorder.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.Metrics != nil {
		r.Use(s.Metrics.Middleware)
		r.Handle("/metrics", s.Metrics.Handler())
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/characters", func(r chi.Router) {
			r.Get("/", s.listCharacters)
			r.Post("/", s.createCharacter)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getCharacter)
				r.Put("/", s.updateCharacter)
				r.Delete("/", s.deleteCharacter)

				r.Get("/memories/tree", s.memoryTree)
				r.Post("/memories/refine", s.refineMonth)
				r.Post("/memories/import", s.importMemories)
				r.Get("/memories/export", s.exportMemories)

				r.Get("/messages", s.listMessages)
				r.Post("/messages", s.postMessage)
				r.Delete("/messages", s.clearMessages)
				r.Post("/regenerate", s.regenerate)
				r.Get("/status", s.status)
				r.Get("/events", s.events)
			})
		})
		r.Get("/settings/api", s.getAPISettings)
		r.Put("/settings/api", s.putAPISettings)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Start begins listening in the background. It returns once the listener is
// open; the server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("api: listen %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.logger.Info("api server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return ln.Addr(), nil
}

// Stop shuts the server down and disconnects websocket clients.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	s.Hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("api server shutdown error", "err", err)
	}
}
