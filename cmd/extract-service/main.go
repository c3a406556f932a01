package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/common/database"
	"github.com/synaptica-ai/phenoxtract/pkg/common/kafka"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/common/middleware"
	"github.com/synaptica-ai/phenoxtract/pkg/extraction"
	"github.com/synaptica-ai/phenoxtract/pkg/observability/metrics"
	"github.com/synaptica-ai/phenoxtract/pkg/ontology"
	"github.com/synaptica-ai/phenoxtract/pkg/pipeline"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	repo := extraction.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate extraction tables")
	}

	redisClient := database.GetRedis()
	defer database.CloseRedis()

	ontologyOpts := ontology.OptionsFromConfig(cfg)
	if cfg.OntologyCacheEnabled {
		ontologyOpts.Cache = redisClient
	}

	events := kafka.NewProducer(cfg.ExtractionEventsTopic)
	defer events.Close()

	svc := extraction.NewService(
		extraction.NewValidator(int(cfg.MaxRequestBody)),
		repo,
		events,
		extraction.PipelineRunner(pipeline.Options{Ontology: ontologyOpts}),
		cfg.ManifestRoot,
		cfg.RunStatusTTL,
	).WithCache(extraction.NewStatusCache(redisClient, time.Hour))
	handler := extraction.NewHTTPHandler(svc, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"postgres": "ok", "redis": "ok"}
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			status["postgres"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
		if err := database.PingRedis(r.Context()); err != nil {
			status["redis"] = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimit(2, 10))
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Extraction Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	consumer := kafka.NewConsumer(cfg.ExtractionRequestTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	go func() {
		if err := consumer.Consume(ctx, svc.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Error("extraction request consumer stopped")
		}
	}()

	go func() {
		ticker := time.NewTicker(12 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := svc.Cleanup(context.Background()); err != nil {
					logger.Log.WithError(err).Warn("cleanup job failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Extraction Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}
	svc.Wait()

	logger.Log.Info("Extraction Service stopped")
}
