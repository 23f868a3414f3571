package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/practicehub-backend/internal/logger"
)

// Mounter registers a controller's routes. Public routes go on public,
// everything needing an authenticated caller on protected.
type Mounter interface {
	Mount(public, protected chi.Router)
}

type RouterParams struct {
	Logger       *logger.Logger
	Metrics      *HTTPMetrics
	Gatherer     prometheus.Gatherer
	Authenticate func(http.Handler) http.Handler
	Controllers  []Mounter
}

func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(p.Logger))
	r.Use(middleware.Recoverer)
	r.Use(p.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(protected chi.Router) {
		if p.Authenticate != nil {
			protected.Use(p.Authenticate)
		}
		for _, c := range p.Controllers {
			c.Mount(r, protected)
		}
	})
	return r
}
