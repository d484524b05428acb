package server

import (
	"bytes"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/run5k/internal/assetcache"
	"github.com/meltforce/run5k/internal/plan"
	"github.com/meltforce/run5k/internal/progress"
	"github.com/meltforce/run5k/internal/timer"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	catalog *plan.Catalog
	store   *progress.Store
	timer   *timer.Controller
	events  *EventLog
	assets  *assetcache.Manager
	ts      WhoIsClient
	log     *slog.Logger
	router  chi.Router
}

// New creates a new Server with all routes configured.
func New(catalog *plan.Catalog, store *progress.Store, ctrl *timer.Controller, events *EventLog, log *slog.Logger) *Server {
	s := &Server{
		catalog: catalog,
		store:   store,
		timer:   ctrl,
		events:  events,
		log:     log,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale enables identity lookups for requests arriving over tsnet.
func (s *Server) SetTailscale(lc WhoIsClient) {
	s.ts = lc
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)

		r.Get("/workouts", s.handleWorkouts)

		r.Get("/progress", s.handleProgress)
		r.Post("/progress/{index}/toggle", s.handleToggleProgress)
		r.Post("/progress/{index}/complete", s.handleCompleteProgress)

		r.Get("/preferences", s.handlePreferences)
		r.Put("/preferences/name", s.handleSetRunnerName)

		r.Get("/session", s.handleSession)
		r.Get("/session/events", s.handleSessionEvents)
		r.Post("/session/commands/{command}", s.handleSessionCommand)

		r.Get("/cache", s.handleCache)
	})
}

// identity resolves the caller through Tailscale when available and falls
// back to the local dev identity otherwise.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.ts == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.ts, s.log)(next).ServeHTTP(w, r)
	})
}

// SetFrontend mounts the embedded SPA filesystem behind the asset cache.
// Unmatched routes serve index.html for client-side routing; unmatched
// API routes get a JSON 404.
func (s *Server) SetFrontend(webFS fs.FS, assets *assetcache.Manager) {
	s.assets = assets
	var frontend http.Handler = FrontendHandler(webFS)
	if assets != nil {
		frontend = assets.Handler(frontend)
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		frontend.ServeHTTP(w, r)
	})
}

// FrontendHandler serves files from webFS. Paths that name no file get
// index.html, marked with assetcache.FallbackHeader so it is not cached
// under that path. index.html is served in place rather than redirected to /
// so that both names can be cached.
func FrontendHandler(webFS fs.FS) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}
		data, err := fs.ReadFile(webFS, name)
		if err != nil {
			// Fallback to index.html for SPA routing
			name = "index.html"
			if data, err = fs.ReadFile(webFS, name); err != nil {
				http.NotFound(w, r)
				return
			}
			w.Header().Set(assetcache.FallbackHeader, "1")
		}
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
	})
}
