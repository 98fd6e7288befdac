package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/delivery/http/handler"
	"github.com/user/linkchecker-service/internal/delivery/http/middleware"
)

func New(h *handler.Handler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Get("/report", h.HandleReport)
		r.Get("/report/queue", h.HandleQueue)
		r.Get("/report.csv", h.HandleReportCSV)
		r.Get("/stats", h.HandleStats)
		r.Get("/fields", h.HandleFields)
		r.Post("/scan", h.HandleStartScan)
		r.Post("/check", h.HandleStartCheck)
		r.Get("/runs/{id}", h.HandleGetRun)
	})

	return r
}
