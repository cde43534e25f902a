package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/common/database"
	"github.com/RecoveryCode-company/PulsoftMovil/common/logger"
	rediscommon "github.com/RecoveryCode-company/PulsoftMovil/common/redis"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/config"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/evaluator"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/httpapi"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/live"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/metrics"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/repository"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/service"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/telemetry"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(logger.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "pulsoft-data",
		File:        cfg.Log.File,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect database", zap.Error(err))
	}
	defer database.Close(db)
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		log.Fatal("Failed to ping redis", zap.Error(err))
	}

	registry, m := service.NewMetricsRegistry()

	store := telemetry.NewStore(cfg, redisClient, log)
	states, err := service.NewSharedStateStore(cfg, redisClient, log)
	if err != nil {
		log.Fatal("Failed to create state store", zap.Error(err))
	}
	alertRules, displayRules := evaluator.RulesFromConfig(cfg)
	eval := evaluator.NewEvaluator(alertRules, displayRules)

	usersRepo := repository.NewUsersRepository(db, log)
	linksRepo := repository.NewLinksRepository(db, log)
	tokensRepo := repository.NewTokensRepository(db, log)
	episodesRepo := repository.NewEpisodesRepository(db, log)
	notesRepo := repository.NewNotesRepository(db, log)

	patients := service.NewPatientService(store, states, usersRepo, linksRepo, tokensRepo, episodesRepo, notesRepo,
		service.IngestLimits(cfg), m, log)
	pairing := service.NewPairingService(usersRepo, linksRepo, log)
	subscriber := live.NewSubscriber(store, states, eval, m, log)

	router := httpapi.NewRouter(m, log)
	router.RegisterPatientRoutes(httpapi.NewPatientHandler(patients, log))
	router.RegisterUserRoutes(httpapi.NewUserHandler(patients, log))
	router.RegisterPairingRoutes(httpapi.NewPairingHandler(pairing, log))
	router.RegisterLiveRoutes(httpapi.NewLiveHandler(subscriber, log))
	router.HandleHandler("/metrics", metrics.Handler(registry))

	srv := service.NewServer("api", cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server error", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop HTTP server", zap.Error(err))
	}
	log.Info("Data service stopped")
}
