package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/config"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StateStore 报警周期状态存储（按患者）
type StateStore interface {
	// Load 读取状态，不存在时返回初始的 Closed 状态
	Load(ctx context.Context, patientID string) (*models.AlertEpisode, error)
	Save(ctx context.Context, episode *models.AlertEpisode) error
}

func closedEpisode(patientID string) *models.AlertEpisode {
	return &models.AlertEpisode{
		PatientID:      patientID,
		Classification: models.ClassificationNone,
	}
}

// MemoryStateStore 进程内状态存储（重启后丢失）
type MemoryStateStore struct {
	mu       sync.RWMutex
	episodes map[string]models.AlertEpisode
}

// NewMemoryStateStore 创建进程内状态存储
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{episodes: make(map[string]models.AlertEpisode)}
}

func (m *MemoryStateStore) Load(_ context.Context, patientID string) (*models.AlertEpisode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep, ok := m.episodes[patientID]
	if !ok {
		return closedEpisode(patientID), nil
	}
	return &ep, nil
}

func (m *MemoryStateStore) Save(_ context.Context, episode *models.AlertEpisode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodes[episode.PatientID] = *episode
	return nil
}

// RedisStateStore Redis 状态存储（JSON，无 TTL）
type RedisStateStore struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewRedisStateStore 创建 Redis 状态存储
func NewRedisStateStore(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *RedisStateStore {
	return &RedisStateStore{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetStateKey 构建状态键
func (s *RedisStateStore) GetStateKey(patientID string) string {
	return s.config.Alarm.StateKeyPrefix + patientID
}

func (s *RedisStateStore) Load(ctx context.Context, patientID string) (*models.AlertEpisode, error) {
	val, err := s.redisClient.Get(ctx, s.GetStateKey(patientID)).Result()
	if err != nil {
		if err == redis.Nil {
			return closedEpisode(patientID), nil
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	var ep models.AlertEpisode
	if err := json.Unmarshal([]byte(val), &ep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &ep, nil
}

func (s *RedisStateStore) Save(ctx context.Context, episode *models.AlertEpisode) error {
	jsonData, err := json.Marshal(episode)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.GetStateKey(episode.PatientID), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}
