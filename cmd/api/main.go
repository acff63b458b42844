package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/crucial707/inspect-ops/internal/config"
	"github.com/crucial707/inspect-ops/internal/db"
	"github.com/crucial707/inspect-ops/internal/generator"
	"github.com/crucial707/inspect-ops/internal/repo"
	"github.com/crucial707/inspect-ops/internal/scheduler"
)

func main() {
	cfg := config.Load()

	if cfg.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	if cfg.Env == "prod" && (cfg.JWTSecret == "" || cfg.JWTSecret == "supersecretkey") {
		log.Fatal("JWT_SECRET must be set to a non-default value when ENV=prod")
	}

	database, err := db.Connect(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	log.Println("Successfully connected to the database")

	databaseURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err := db.Run(databaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if cfg.SchedulerEnabled {
		schedules := repo.NewScheduleRepo(database)
		templates := repo.NewTemplateRepo(database)
		workOrders := repo.NewWorkOrderRepo(database)
		engine := generator.NewEngine(database, schedules, templates, workOrders)
		if err := scheduler.Run(cfg.SchedulerSpec, schedules, engine); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		log.Printf("Scheduler running (spec %q)", cfg.SchedulerSpec)
	}

	r := newRouter(database, cfg)

	addr := ":" + cfg.Port
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		log.Println("Starting HTTPS server on " + addr)
		err = http.ListenAndServeTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile, r)
	} else {
		log.Println("Starting server on " + addr)
		err = http.ListenAndServe(addr, r)
	}
	if err != nil {
		log.Fatal(err)
	}
}
