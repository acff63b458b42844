package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crucial707/inspect-ops/internal/config"
	"github.com/crucial707/inspect-ops/internal/generator"
	"github.com/crucial707/inspect-ops/internal/handlers"
	"github.com/crucial707/inspect-ops/internal/middleware"
	"github.com/crucial707/inspect-ops/internal/repo"
)

// newRouter builds the full API router with all middleware and routes.
// Separated from main so tests can mount it on a httptest server.
func newRouter(database *sql.DB, cfg config.Config) http.Handler {
	schedules := repo.NewScheduleRepo(database)
	templates := repo.NewTemplateRepo(database)
	workOrders := repo.NewWorkOrderRepo(database)
	users := repo.NewUserRepo(database)
	engine := generator.NewEngine(database, schedules, templates, workOrders)

	authHandler := &handlers.AuthHandler{
		UserRepo:    users,
		Secret:      []byte(cfg.JWTSecret),
		ExpireHours: cfg.JWTExpireHours,
	}
	scheduleHandler := &handlers.ScheduleHandler{Repo: schedules, Templates: templates, Engine: engine}
	templateHandler := &handlers.TemplateHandler{Repo: templates, Schedules: schedules, WorkOrders: workOrders}
	workOrderHandler := &handlers.WorkOrderHandler{Repo: workOrders}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.Handler())

	authLimiter := middleware.AuthRateLimiter()
	r.Group(func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", scheduleHandler.ListSchedules)
			r.Post("/", scheduleHandler.CreateSchedule)
			r.Get("/due-today", scheduleHandler.DueToday)
			r.Get("/overdue", scheduleHandler.Overdue)
			r.Get("/{id}", scheduleHandler.GetSchedule)
			r.Put("/{id}", scheduleHandler.UpdateSchedule)
			r.Delete("/{id}", scheduleHandler.DeleteSchedule)
			r.Post("/{id}/generate", scheduleHandler.GenerateWorkOrder)
			r.Post("/{id}/toggle-active", scheduleHandler.ToggleActive)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.ListTemplates)
			r.Post("/", templateHandler.CreateTemplate)
			r.Get("/categories", templateHandler.Categories)
			r.Get("/{id}", templateHandler.GetTemplate)
			r.Put("/{id}", templateHandler.UpdateTemplate)
			r.Delete("/{id}", templateHandler.DeleteTemplate)
			r.Post("/{id}/duplicate", templateHandler.DuplicateTemplate)
		})

		r.Route("/work-orders", func(r chi.Router) {
			r.Get("/", workOrderHandler.ListWorkOrders)
			r.Get("/{id}", workOrderHandler.GetWorkOrder)
		})
	})

	return r
}
