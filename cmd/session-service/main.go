package main

import (
	"context"
	"errors"
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
	"github.com/roland-id-au/vows-social-sub000/pkg/common/lock"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/observability/metrics"
	"github.com/roland-id-au/vows-social-sub000/pkg/session"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := session.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate session tables")
	}

	locker := lock.NewRedisLocker(database.GetRedis(), cfg.SessionLockTTL)
	client := session.NewHTTPClient(cfg)
	manager := session.NewManager(cfg, repo, repo, locker, client)
	handler := session.NewHTTPHandler(manager, cfg.MaxRequestBody)

	// Challenge codes arrive on Kafka from the inbound-email relay.
	consumer := kafka.NewConsumer(cfg.ChallengeCodesTopic, "")
	defer consumer.Close()
	intake := session.NewCodeIntake(repo)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go func() {
		if err := consumer.Consume(consumerCtx, intake.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("challenge code consumer stopped")
		}
	}()

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

	api := router.PathPrefix("/api/v1/session").Subrouter()
	handler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Session service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start session service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down session service...")
	stopConsumer()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("session service forced to shutdown")
	}
	database.ClosePostgres()
	database.CloseRedis()
	logger.Log.Info("Session service stopped")
}
