package httpserver

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BigKAA/artStore-sub005/internal/version"
)

// Pinger checks connectivity to a dependency, returning the error (if any)
// for readiness/status reporting. The dependency's name is its key in
// Options.Pingers.
type Pinger func(ctx context.Context) error

// Server is the shared chi scaffolding mounted by both the Storage Element
// and Admin binaries: request-id/logging/metrics middleware, CORS, and the
// unauthenticated /healthz, /readyz, /metrics, /status endpoints. Each binary
// mounts its own authenticated routes on Router after construction.
type Server struct {
	Router    *chi.Mux
	Logger    *slog.Logger
	startedAt time.Time
	pingers   map[string]Pinger
}

// Options configures a new Server.
type Options struct {
	Logger         *slog.Logger
	MetricsReg     *prometheus.Registry
	CORSOrigins    []string
	Pingers        map[string]Pinger // name -> connectivity check, e.g. "database", "redis"
}

// New creates the shared HTTP scaffolding. Domain handlers are mounted on
// Router by the caller after construction.
func New(opts Options) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    opts.Logger,
		startedAt: time.Now(),
		pingers:   opts.Pingers,
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(opts.Logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Get("/status", s.handleStatus)
	s.Router.Handle("/metrics", promhttp.HandlerFor(opts.MetricsReg, promhttp.HandlerOpts{}))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	for name, ping := range s.pingers {
		if err := ping(ctx); err != nil {
			s.Logger.Error("readiness check failed", "dependency", name, "error", err)
			RespondError(w, http.StatusServiceUnavailable, "unavailable", name+" not ready")
			return
		}
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusResponse is the JSON shape returned by /status.
type statusResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	CommitSHA     string             `json:"commit_sha"`
	Uptime        string             `json:"uptime"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Dependencies  map[string]depStat `json:"dependencies"`
}

type depStat struct {
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uptime := time.Since(s.startedAt)

	resp := statusResponse{
		Version:       version.Version,
		CommitSHA:     version.Commit,
		Uptime:        uptime.Truncate(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		Dependencies:  make(map[string]depStat, len(s.pingers)),
		Status:        "ok",
	}

	for name, ping := range s.pingers {
		start := time.Now()
		ds := depStat{Status: "ok"}
		if err := ping(ctx); err != nil {
			s.Logger.Error("status check failed", "dependency", name, "error", err)
			ds.Status = "error"
			resp.Status = "degraded"
		}
		ds.LatencyMs = math.Round(float64(time.Since(start).Microseconds())/10) / 100
		resp.Dependencies[name] = ds
	}

	Respond(w, http.StatusOK, resp)
}
