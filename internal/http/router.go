package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"reconboard/internal/logger"
)

type RouterOptions struct {
	Logger  *logger.Logger
	Timeout time.Duration
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(Recoverer(log))
	r.Use(Timeout(opts.Timeout))
	r.Use(CORS())

	r.Get("/", handler.Root)
	r.Get("/healthz", handler.Health)
	r.Post("/upload", handler.Upload)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", handler.Session)
		r.Get("/records", handler.ListRecords)
		r.Get("/records/export", handler.ExportRecords)
		r.Get("/metrics", handler.Metrics)
		r.Post("/demo", handler.LoadDemo)
		r.Get("/runs", handler.ListRuns)
	})

	return r
}
