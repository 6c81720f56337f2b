package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aydenden/companylens/internal/application"
	appanalysis "github.com/aydenden/companylens/internal/application/analysis"
	"github.com/aydenden/companylens/internal/config"
	"github.com/aydenden/companylens/internal/domain/ai"
	"github.com/aydenden/companylens/internal/domain/analysis"
	"github.com/aydenden/companylens/internal/domain/company"
	ollamaClient "github.com/aydenden/companylens/internal/infra/ai/ollama"
	openaiClient "github.com/aydenden/companylens/internal/infra/ai/openai"
	"github.com/aydenden/companylens/internal/infra/ai/prompt"
	"github.com/aydenden/companylens/internal/infra/channel"
	mysqlp "github.com/aydenden/companylens/internal/infra/db/mysql"
	postgresp "github.com/aydenden/companylens/internal/infra/db/postgres"
	"github.com/aydenden/companylens/internal/infra/httpserver"
	minioStore "github.com/aydenden/companylens/internal/infra/storage"
	"github.com/aydenden/companylens/internal/middleware"
)

func newCompanyRepo(driver string, db *sql.DB) company.Repository {
	if driver == "postgres" {
		return postgresp.NewCompanyRepository(db)
	}
	return mysqlp.NewCompanyRepository(db)
}

func newSessionRepo(driver string, db *sql.DB) analysis.SessionStore {
	if driver == "postgres" {
		return postgresp.NewSessionRepository(db)
	}
	return mysqlp.NewSessionRepository(db)
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database
	var db *sql.DB
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
	}
	if err != nil {
		log.Fatalf("database connect error: %v", err)
	}
	defer db.Close()

	// init repos
	var (
		companies = newCompanyRepo(cfg.Database.Driver, db)
		sessions  = newSessionRepo(cfg.Database.Driver, db)
	)

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init model client
	var model ai.Client
	var modelCheck middleware.HealthChecker
	switch cfg.Model.Provider {
	case "openai":
		model = openaiClient.NewClient(cfg.Model.Endpoint, cfg.Model.APIKey, cfg.Model.Model)
	default:
		oc := ollamaClient.NewClient(cfg.Model.Endpoint, cfg.Model.Model, cfg.ModelTimeout())
		model = oc
		modelCheck = middleware.CheckerFunc(oc.Healthy)
	}

	// init service
	svc := &appanalysis.Service{
		Sessions:   sessions,
		Companies:  companies,
		Images:     store,
		Model:      model,
		Prompts:    prompt.Provider{},
		Clock:      application.SystemClock{},
		Workers:    cfg.Analysis.Workers,
		MaxRetries: cfg.Analysis.MaxRetries,
	}

	// event channel: the hub is both the observer endpoint and the
	// service's event publisher
	hub := channel.NewHub(svc)
	svc.Events = hub

	// settle sessions left over from an unclean shutdown
	if err := svc.Recover(ctx); err != nil {
		log.Printf("session recovery error: %v", err)
	}

	// init router
	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"storage": middleware.CheckerFunc(func(ctx context.Context) error {
			return store.Healthy(ctx)
		}),
	}
	if modelCheck != nil {
		checkers["model"] = modelCheck
	}
	mux := httpserver.NewRouter(svc, companies, store, hub, checkers)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
