package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/evaluator"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/metrics"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChangeNotifier 状态迁移后通知实时订阅方（由 telemetry.Store 实现）
type ChangeNotifier interface {
	NotifyChanged(ctx context.Context, patientID string) error
}

// Tracker 报警周期状态机（Closed / Open）
//
// 同一患者的 Apply 调用必须串行，由 Queues 保证。
type Tracker struct {
	evaluator *evaluator.Evaluator
	states    StateStore
	notifier  ChangeNotifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewTracker 创建状态机
func NewTracker(
	eval *evaluator.Evaluator,
	states StateStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Tracker {
	return &Tracker{
		evaluator: eval,
		states:    states,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// SetChangeNotifier 设置状态迁移通知（为 nil 时不通知）
func (t *Tracker) SetChangeNotifier(n ChangeNotifier) {
	t.notifier = n
}

// Apply 处理一条快照更新，发生状态迁移时返回事件
//
// Version 不大于已处理版本的更新直接丢弃（Version 为 0 时不做去重）。
func (t *Tracker) Apply(ctx context.Context, snap models.PatientSnapshot) (*models.EpisodeEvent, error) {
	ep, err := t.states.Load(ctx, snap.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode: %w", err)
	}

	// 遥测节点被删除重建后 version 重新从 1 开始
	if snap.Generation != "" && snap.Generation != ep.Generation {
		if ep.Generation != "" {
			t.logger.Info("Telemetry node recreated, resetting version tracking",
				zap.String("patient_id", snap.PatientID),
				zap.Int64("last_version", ep.LastVersion),
			)
		}
		ep.Generation = snap.Generation
		ep.LastVersion = 0
	}

	if snap.Version > 0 && snap.Version <= ep.LastVersion {
		t.logger.Debug("Dropping stale snapshot update",
			zap.String("patient_id", snap.PatientID),
			zap.Int64("version", snap.Version),
			zap.Int64("last_version", ep.LastVersion),
		)
		t.metrics.UpdateDropped()
		return nil, nil
	}

	class := t.evaluator.Evaluate(snap)
	at := snap.UpdatedAt
	if at.IsZero() {
		at = t.now()
	}

	var event *models.EpisodeEvent
	switch {
	case !ep.IsOpen && class.IsAlert():
		// Closed -> Open
		ep.IsOpen = true
		ep.EpisodeID = uuid.New().String()
		openedAt := at
		ep.OpenedAt = &openedAt
		event = &models.EpisodeEvent{
			Type:           models.EpisodeOpened,
			PatientID:      snap.PatientID,
			EpisodeID:      ep.EpisodeID,
			Classification: class,
			Snapshot:       snap,
			At:             at,
		}
	case ep.IsOpen && !class.IsAlert():
		// Open -> Closed
		event = &models.EpisodeEvent{
			Type:           models.EpisodeClosed,
			PatientID:      snap.PatientID,
			EpisodeID:      ep.EpisodeID,
			Classification: ep.Classification,
			Snapshot:       snap,
			At:             at,
		}
		ep.IsOpen = false
		ep.EpisodeID = ""
		ep.OpenedAt = nil
	}
	ep.Classification = class
	if snap.Version > ep.LastVersion {
		ep.LastVersion = snap.Version
	}

	if err := t.states.Save(ctx, ep); err != nil {
		return nil, fmt.Errorf("failed to save episode: %w", err)
	}

	if event != nil {
		t.metrics.Episode(string(event.Type), string(event.Classification))
		t.logger.Info("Alert episode transition",
			zap.String("patient_id", event.PatientID),
			zap.String("episode_id", event.EpisodeID),
			zap.String("type", string(event.Type)),
			zap.String("classification", string(event.Classification)),
			zap.Int64("version", snap.Version),
		)

		if t.notifier != nil {
			// 快照写入时的通知早于状态保存，这里再通知一次
			if err := t.notifier.NotifyChanged(ctx, snap.PatientID); err != nil {
				t.logger.Warn("Failed to notify episode change",
					zap.String("patient_id", snap.PatientID),
					zap.Error(err),
				)
			}
		}
	}
	return event, nil
}

// Episode 读取当前状态
func (t *Tracker) Episode(ctx context.Context, patientID string) (*models.AlertEpisode, error) {
	return t.states.Load(ctx, patientID)
}
