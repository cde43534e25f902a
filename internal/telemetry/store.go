package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/config"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound 患者遥测节点不存在
var ErrNotFound = errors.New("telemetry node not found")

const (
	fieldCardiovascular = "cardiovascular"
	fieldSudor          = "sudor"
	fieldTemperatura    = "temperatura"
	fieldPanicMode      = "panicMode"
	fieldUpdatedAt      = "updatedAt"
	fieldVersion        = "version"
	fieldGeneration     = "generation"

	panicToggle = "toggle"
)

// Store 遥测存储（Redis hash + Pub/Sub + Streams）
type Store struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
	now         func() time.Time
}

// NewStore 创建遥测存储
func NewStore(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *Store {
	return &Store{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
		now:         time.Now,
	}
}

// Key 构建快照键
func (s *Store) Key(patientID string) string {
	return s.config.Telemetry.KeyPrefix + patientID
}

// ChangesChannel 构建变更通知频道
func (s *Store) ChangesChannel(patientID string) string {
	return s.Key(patientID) + s.config.Telemetry.ChangesSuffix
}

// Stream 变更流名称
func (s *Store) Stream() string {
	return s.config.Telemetry.Stream
}

// Get 读取快照，节点不存在时返回 ErrNotFound
func (s *Store) Get(ctx context.Context, patientID string) (*models.PatientSnapshot, error) {
	fields, err := s.redisClient.HGetAll(ctx, s.Key(patientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return parseSnapshot(patientID, fields)
}

// EnsureInitialized 节点不存在时写入默认快照，返回是否执行了初始化
func (s *Store) EnsureInitialized(ctx context.Context, patientID string) (bool, error) {
	res, err := initScript.Run(ctx, s.redisClient,
		[]string{s.Key(patientID), s.ChangesChannel(patientID)},
		patientID, s.now().UTC().Format(time.RFC3339Nano), uuid.New().String(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to init snapshot: %w", err)
	}
	if res == 1 {
		s.logger.Info("Initialized telemetry node",
			zap.String("patient_id", patientID),
		)
	}
	return res == 1, nil
}

// GetOrInit 读取快照；节点不存在时写入一次默认值并返回默认快照
func (s *Store) GetOrInit(ctx context.Context, patientID string) (*models.PatientSnapshot, error) {
	snap, err := s.Get(ctx, patientID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if _, err := s.EnsureInitialized(ctx, patientID); err != nil {
		return nil, err
	}
	// 并发初始化时以存储中的结果为准
	return s.Get(ctx, patientID)
}

// ApplyReading 合并设备上报的字段
func (s *Store) ApplyReading(ctx context.Context, patientID string, reading models.VitalsReading) (*models.PatientSnapshot, error) {
	if reading.IsEmpty() {
		return nil, fmt.Errorf("%w: no vital fields present", models.ErrInvalidSnapshot)
	}

	var pairs []interface{}
	if reading.Cardiovascular != nil {
		pairs = append(pairs, fieldCardiovascular, formatFloat(*reading.Cardiovascular))
	}
	if reading.Sudor != nil {
		pairs = append(pairs, fieldSudor, formatFloat(*reading.Sudor))
	}
	if reading.Temperatura != nil {
		pairs = append(pairs, fieldTemperatura, formatFloat(*reading.Temperatura))
	}
	return s.mutate(ctx, patientID, "", pairs)
}

// TogglePanic 原子翻转 panicMode（后写覆盖先写）
func (s *Store) TogglePanic(ctx context.Context, patientID string) (*models.PatientSnapshot, error) {
	return s.mutate(ctx, patientID, panicToggle, nil)
}

// SetPanic 设置 panicMode
func (s *Store) SetPanic(ctx context.Context, patientID string, on bool) (*models.PatientSnapshot, error) {
	return s.mutate(ctx, patientID, strconv.FormatBool(on), nil)
}

// NotifyChanged 发布一次变更通知（快照未变、报警周期状态变化时使用）
func (s *Store) NotifyChanged(ctx context.Context, patientID string) error {
	if err := s.redisClient.Publish(ctx, s.ChangesChannel(patientID), patientID).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe 订阅患者变更通知，返回前确认订阅已建立
func (s *Store) Subscribe(ctx context.Context, patientID string) (*redis.PubSub, error) {
	pubsub := s.redisClient.Subscribe(ctx, s.ChangesChannel(patientID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe changes: %w", err)
	}
	return pubsub, nil
}

func (s *Store) mutate(ctx context.Context, patientID, panicOp string, pairs []interface{}) (*models.PatientSnapshot, error) {
	args := make([]interface{}, 0, 5+len(pairs))
	args = append(args,
		patientID,
		s.now().UTC().Format(time.RFC3339Nano),
		s.config.Telemetry.StreamMaxLen,
		panicOp,
		uuid.New().String(),
	)
	args = append(args, pairs...)

	res, err := mutateScript.Run(ctx, s.redisClient,
		[]string{s.Key(patientID), s.ChangesChannel(patientID), s.Stream()},
		args...,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	fields, err := flatToMap(res)
	if err != nil {
		return nil, err
	}
	snap, err := parseSnapshot(patientID, fields)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Telemetry node updated",
		zap.String("patient_id", patientID),
		zap.Int64("version", snap.Version),
		zap.String("panic_op", panicOp),
	)
	return snap, nil
}

// flatToMap HGETALL 脚本返回值 [k1, v1, k2, v2 ...] 转 map
func flatToMap(res interface{}) (map[string]string, error) {
	items, ok := res.([]interface{})
	if !ok || len(items)%2 != 0 {
		return nil, fmt.Errorf("unexpected script result: %T", res)
	}
	fields := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		k, _ := items[i].(string)
		v, _ := items[i+1].(string)
		fields[k] = v
	}
	return fields, nil
}

func parseSnapshot(patientID string, fields map[string]string) (*models.PatientSnapshot, error) {
	snap := models.DefaultSnapshot(patientID)
	var err error

	if snap.Cardiovascular, err = parseFloat(fields, fieldCardiovascular); err != nil {
		return nil, err
	}
	if snap.Sudor, err = parseFloat(fields, fieldSudor); err != nil {
		return nil, err
	}
	if snap.Temperatura, err = parseFloat(fields, fieldTemperatura); err != nil {
		return nil, err
	}
	snap.PanicMode = fields[fieldPanicMode] == "true"
	snap.Generation = fields[fieldGeneration]

	if v := fields[fieldVersion]; v != "" {
		if snap.Version, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", fieldVersion, err)
		}
	}
	if v := fields[fieldUpdatedAt]; v != "" {
		if snap.UpdatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", fieldUpdatedAt, err)
		}
	}
	return &snap, nil
}

func parseFloat(fields map[string]string, name string) (float64, error) {
	v, ok := fields[name]
	if !ok || v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return f, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
