package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/careslot/hospital-booking/pkg/logging"
)

type RouterConfig struct {
	Service  BookingService
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   *logging.Logger
	Registry *prometheus.Registry
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/slots", func(r chi.Router) {
		r.Post("/", createSlotHandler(cfg.Service))
		r.Put("/{id}", updateSlotHandler(cfg.Service))
		r.Delete("/{id}", deleteSlotHandler(cfg.Service))
	})

	r.Route("/doctors/{id}", func(r chi.Router) {
		r.Get("/slots", listDoctorSlotsHandler(cfg.Service))
		r.Get("/appointments", listDoctorAppointmentsHandler(cfg.Service))
	})

	r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Service))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/{id}/status", updateStatusHandler(cfg.Service))
	})

	return r
}
