package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/common/database"
	mqttcommon "github.com/RecoveryCode-company/PulsoftMovil/common/mqtt"
	rediscommon "github.com/RecoveryCode-company/PulsoftMovil/common/redis"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/config"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/consumer"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/dispatcher"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/evaluator"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/metrics"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/push"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/repository"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/telemetry"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/tracker"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// AlarmService 报警服务（整合各层）：设备数据接入 -> 遥测存储 -> 变更流 -> 报警周期 -> 推送
type AlarmService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	logger      *zap.Logger

	// 各层组件
	registry       *prometheus.Registry
	metrics        *metrics.Metrics
	queues         *tracker.Queues
	mqttConsumer   *consumer.MQTTConsumer
	streamConsumer *consumer.StreamConsumer
	metricsServer  *Server
}

// NewAlarmService 创建报警服务
func NewAlarmService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*AlarmService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	// 2. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 指标
	registry, m := NewMetricsRegistry()

	// 4. 遥测存储与报警周期状态
	store := telemetry.NewStore(cfg, redisClient, logger)
	states, err := NewStateStore(cfg, redisClient, logger)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, err
	}
	alertRules, displayRules := evaluator.RulesFromConfig(cfg)
	eval := evaluator.NewEvaluator(alertRules, displayRules)
	track := tracker.NewTracker(eval, states, m, logger)
	track.SetChangeNotifier(store)

	// 5. Repository 层
	tokensRepo := repository.NewTokensRepository(db, logger)
	linksRepo := repository.NewLinksRepository(db, logger)
	episodesRepo := repository.NewEpisodesRepository(db, logger)

	// 6. 推送
	resolver, err := dispatcher.NewResolver(cfg.Alarm.RecipientMode, tokensRepo, linksRepo)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, err
	}
	sender := push.NewSenderFromConfig(cfg, logger)
	disp := dispatcher.NewDispatcher(resolver, sender, m, logger)
	sink := NewAlertSink(disp, episodesRepo, logger)

	// 7. 按患者串行处理
	queues := tracker.NewQueues(track, sink, cfg.Alarm.QueueSize, cfg.Alarm.IdleTimeout, m, logger)

	s := &AlarmService{
		config:         cfg,
		db:             db,
		redisClient:    redisClient,
		logger:         logger,
		registry:       registry,
		metrics:        m,
		queues:         queues,
		streamConsumer: consumer.NewStreamConsumer(cfg, redisClient, queues, logger),
		metricsServer:  NewServer("metrics", cfg.HTTP.MetricsAddr, metrics.Handler(registry), logger),
	}

	// 8. MQTT 设备数据接入（可选）
	if cfg.MQTT.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, err
		}
		ingester := NewPatientService(store, states, nil, nil, nil, nil, nil, IngestLimits(cfg), m, logger)
		s.mqttClient = mqttClient
		s.mqttConsumer = consumer.NewMQTTConsumer(cfg, mqttClient, ingester, logger)
	}

	return s, nil
}

// Start 启动服务，阻塞到 ctx 取消
func (s *AlarmService) Start(ctx context.Context) error {
	s.logger.Info("Starting alarm service",
		zap.String("recipient_mode", s.config.Alarm.RecipientMode),
		zap.String("state_backend", s.config.Alarm.StateBackend),
	)

	go func() {
		if err := s.metricsServer.Start(); err != nil {
			s.logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Start(); err != nil {
			return fmt.Errorf("failed to start mqtt consumer: %w", err)
		}
	}

	if err := s.streamConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream consumer: %w", err)
	}
	return nil
}

// Stop 停止服务
func (s *AlarmService) Stop() error {
	s.logger.Info("Stopping alarm service")

	if s.mqttConsumer != nil {
		s.mqttConsumer.Stop()
		s.mqttClient.Disconnect()
	}

	// 处理完已入队的更新
	s.queues.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.metricsServer.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop metrics server", zap.Error(err))
	}

	// 关闭数据库连接
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	// 关闭 Redis 连接
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// NewStateStore 按 ALARM_STATE_BACKEND 选择报警周期状态存储
func NewStateStore(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (tracker.StateStore, error) {
	switch cfg.Alarm.StateBackend {
	case "memory":
		return tracker.NewMemoryStateStore(), nil
	case "redis":
		return tracker.NewRedisStateStore(cfg, redisClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown alarm state backend: %s", cfg.Alarm.StateBackend)
	}
}

// NewSharedStateStore 供 pulsoft-data 读取报警周期状态（memory 后端不跨进程共享，不可用）
func NewSharedStateStore(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (tracker.StateStore, error) {
	if cfg.Alarm.StateBackend == "memory" {
		return nil, fmt.Errorf("alarm state backend %q is not shared across processes, use redis", cfg.Alarm.StateBackend)
	}
	return NewStateStore(cfg, redisClient, logger)
}

// NewMetricsRegistry 创建带进程指标的 Prometheus 注册表
func NewMetricsRegistry() (*prometheus.Registry, *metrics.Metrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, metrics.NewMetrics(registry)
}

// IngestLimits 设备上报取值范围
func IngestLimits(cfg *config.Config) models.VitalLimits {
	return models.VitalLimits{
		CardioMax:      cfg.Ingest.CardioMax,
		SudorMax:       cfg.Ingest.SudorMax,
		TemperaturaMin: cfg.Ingest.TemperaturaMin,
		TemperaturaMax: cfg.Ingest.TemperaturaMax,
	}
}
