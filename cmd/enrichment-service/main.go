package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/config"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/database"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/httpx"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/discovery"
	"github.com/roland-id-au/vows-social-sub000/pkg/enrichment"
	"github.com/roland-id-au/vows-social-sub000/pkg/images"
	"github.com/roland-id-au/vows-social-sub000/pkg/listing"
	"github.com/roland-id-au/vows-social-sub000/pkg/observability/metrics"
	"github.com/roland-id-au/vows-social-sub000/pkg/research"
	"github.com/roland-id-au/vows-social-sub000/pkg/scraper"
	"github.com/roland-id-au/vows-social-sub000/pkg/storage"
	"github.com/roland-id-au/vows-social-sub000/pkg/taskqueue"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	tasks := taskqueue.NewRepository(db)
	if err := tasks.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate task tables")
	}
	entities := discovery.NewRepository(db)
	if err := entities.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate discovery tables")
	}
	listings := listing.NewRepository(db)
	if err := listings.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate listing tables")
	}

	policy := images.DefaultPolicy()
	if cfg.ImagePolicyPath != "" {
		policy, err = images.LoadPolicy(cfg.ImagePolicyPath)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to load image policy")
		}
	}

	store := storage.NewObjectStore(cfg.StorageBaseURL, cfg.StoragePublicURL, cfg.StorageBucket, cfg.StorageAPIKey, 60*time.Second)
	gate := images.NewGate(policy, store, cfg.ImageFetchDelay)

	researcher := research.NewClient(cfg)
	extractor := scraper.NewClient(cfg)
	service := enrichment.NewService(researcher, extractor, entities, listings, gate, tasks,
		cfg.PublishChannels, cfg.ImageMaxPerListing, cfg.TaskMaxAttempts)
	runner := taskqueue.NewRunner(tasks)
	handler := enrichment.NewHTTPHandler(service, runner, tasks, cfg.TaskMaxAttempts, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.Use(httpx.Logging)
	router.Use(httpx.Recovery)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/enrichment").Subrouter()
	handler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Enrichment service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start enrichment service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down enrichment service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("enrichment service forced to shutdown")
	}
	database.ClosePostgres()
	logger.Log.Info("Enrichment service stopped")
}
