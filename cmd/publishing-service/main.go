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
	"github.com/roland-id-au/vows-social-sub000/pkg/common/kafka"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/listing"
	"github.com/roland-id-au/vows-social-sub000/pkg/observability/metrics"
	"github.com/roland-id-au/vows-social-sub000/pkg/publishing"
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
	listings := listing.NewRepository(db)
	if err := listings.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate listing tables")
	}

	producer := kafka.NewProducer(cfg.PublishEventsTopic)
	defer producer.Close()

	channels := []publishing.Channel{publishing.NewEventsChannel(producer)}
	if cfg.PublishWebhookURL != "" {
		channels = append(channels, publishing.NewWebhookChannel(cfg.PublishWebhookURL))
	}

	service := publishing.NewService(listings, channels, cfg.SiteBaseURL)
	runner := taskqueue.NewRunner(tasks)
	handler := publishing.NewHTTPHandler(service, runner, tasks, cfg.TaskMaxAttempts, cfg.MaxRequestBody)

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

	api := router.PathPrefix("/api/v1/publishing").Subrouter()
	handler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Publishing service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start publishing service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down publishing service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("publishing service forced to shutdown")
	}
	database.ClosePostgres()
	logger.Log.Info("Publishing service stopped")
}
