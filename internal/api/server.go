// Package api serves the lead intake HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/directory"
	"github.com/moveis-planejados/lead-api/internal/geo"
	"github.com/moveis-planejados/lead-api/internal/metrics"
	"github.com/moveis-planejados/lead-api/internal/model"
	"github.com/moveis-planejados/lead-api/pkg/ipgeo"
)

// Submitter accepts lead submissions.
type Submitter interface {
	Submit(ctx context.Context, sub model.Submission) (*model.Result, error)
}

// Invalidator drops cached entries by tag.
type Invalidator interface {
	InvalidateTag(ctx context.Context, tag string) error
}

// Deps are the collaborators behind the endpoints. Stores, Cache and IPGeo
// are optional.
type Deps struct {
	Leads   Submitter
	Stores  directory.Directory
	Cache   Invalidator
	IPGeo   ipgeo.Client
	Metrics *metrics.Metrics
}

// Config holds the HTTP-facing settings.
type Config struct {
	AllowedOrigins   []string
	RevalidateSecret string
	// StoreRadiusKm is the default cutoff of the store locator.
	StoreRadiusKm float64
}

type server struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// NewRouter builds the service's HTTP handler.
func NewRouter(cfg Config, deps Deps) http.Handler {
	if cfg.StoreRadiusKm <= 0 {
		cfg.StoreRadiusKm = geo.LocatorRadiusKm
	}
	s := &server{cfg: cfg, deps: deps, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.HandleFunc("/leads", s.handleLead)
		r.HandleFunc("/revalidate", s.handleRevalidate)
		r.Get("/stores", s.handleStores)
	})
	return r
}

// observe logs each request and records it in the HTTP metrics under its
// route pattern.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		d := time.Since(start)
		s.deps.Metrics.Request(route, status, d)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", d),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				zap.L().Error("api: panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Stack("stack"),
				)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Erro interno do servidor."})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string, body any) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, body)
}
