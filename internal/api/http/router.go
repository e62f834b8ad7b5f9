package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/jekabolt/grbpwr-attribution/internal/attribution"
	"github.com/jekabolt/grbpwr-attribution/internal/engine"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/jekabolt/grbpwr-attribution/internal/telemetry"
	"github.com/jekabolt/grbpwr-attribution/log"
)

// Engine is the attribution engine served over http.
type Engine interface {
	ChannelPerformance(ctx context.Context, req engine.Request) (*engine.ChannelResult, error)
	CampaignPerformance(ctx context.Context, req engine.Request) (*engine.CampaignResult, error)
	Hierarchy(ctx context.Context, req engine.Request) (*engine.HierarchyResult, error)
	Timeseries(ctx context.Context, req engine.Request) (*engine.TimeseriesResult, error)
	Cohorts(ctx context.Context, req engine.CohortRequest) (*engine.CohortResult, error)
	Models() []attribution.Definition
	DefaultModel() entity.AttributionModel
}

// Handler returns the router of the attribution api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return isOriginAllowed(origin, s.c.AllowedOrigins)
		},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.RequestLogger(slog.Default()))
	r.Use(middleware.Recoverer)
	if s.c.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.c.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/attribution-models", s.listModels)
		r.Route("/shops/{account}", func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Handler(clientAccountKey))
			}
			r.Get("/channels", s.getChannels)
			r.Get("/campaigns", s.getCampaigns)
			r.Get("/hierarchy", s.getHierarchy)
			r.Get("/timeseries", s.getTimeseries)
			r.Get("/cohorts", s.getCohorts)
		})
	})
	return r
}

func clientAccountKey(r *http.Request) string {
	return r.RemoteAddr + "|" + chi.URLParam(r, "account")
}

func isOriginAllowed(origin string, allowedOrigins []string) bool {
	// Always allow localhost origins
	if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "https://localhost:") {
		return true
	}
	for _, allowedOrigin := range allowedOrigins {
		if origin == allowedOrigin {
			return true
		}
	}
	return false
}
