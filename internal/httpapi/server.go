package httpapi

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	apimw "github.com/hamed0406/pingmonitor/internal/httpapi/middleware"
	"github.com/hamed0406/pingmonitor/internal/scheduler"
)

// StatusSource exposes the live targets. *scheduler.Supervisor implements it.
type StatusSource interface {
	Status() []scheduler.TargetStatus
	Lookup(id domain.TargetID) (scheduler.TargetStatus, bool)
}

type Server struct {
	Logger  *zap.Logger
	Status  StatusSource
	Metrics http.Handler
	// Reconcile asks the engine for an immediate reconciliation. It must not
	// block.
	Reconcile func()
}

func NewServer(l *zap.Logger, st StatusSource, metrics http.Handler, reconcile func()) *Server {
	return &Server{Logger: l, Status: st, Metrics: metrics, Reconcile: reconcile}
}

// Router builds the HTTP surface. /api is guarded by keys and limited to
// rpm requests per minute per client with the given burst.
func (s *Server) Router(keys apimw.Keys, rpm, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(rpm, burst))
		r.Use(apimw.RequireAny(keys))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/targets", s.handleListTargets)
		r.Get("/targets/{id}", s.handleGetTarget)
		r.With(apimw.RequireAdmin(keys)).Post("/reconcile", s.handleReconcile)
	})
	return r
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.Status.Status())
}

// handleGetTarget looks up one live target. URL targets must be path
// escaped: /api/targets/https:%2F%2Fexample.com%2Fhealth
func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "bad target id"})
		return
	}
	st, ok := s.Status.Lookup(domain.TargetID(id))
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "target not monitored"})
		return
	}
	render.JSON(w, r, st)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.Reconcile == nil {
		render.Status(r, http.StatusNotImplemented)
		render.JSON(w, r, map[string]string{"error": "reconcile not available"})
		return
	}
	s.Reconcile()
	s.Logger.Info("reconcile_requested", zap.String("remote", r.RemoteAddr))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "queued"})
}
