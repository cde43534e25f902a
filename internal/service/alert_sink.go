package service

import (
	"context"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/dispatcher"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"go.uber.org/zap"
)

// Notifier 报警推送
type Notifier interface {
	Dispatch(ctx context.Context, patientID string, class models.AlertClassification) dispatcher.Result
}

// AlertSink 接收报警周期事件：打开时推送并写审计记录，关闭时只写审计记录
type AlertSink struct {
	notifier Notifier
	episodes EpisodeStore
	logger   *zap.Logger
}

// NewAlertSink 创建事件接收方（episodes 可为 nil，此时不写审计记录）
func NewAlertSink(notifier Notifier, episodes EpisodeStore, logger *zap.Logger) *AlertSink {
	return &AlertSink{
		notifier: notifier,
		episodes: episodes,
		logger:   logger,
	}
}

// HandleEpisodeEvent 实现 tracker.EventSink
func (s *AlertSink) HandleEpisodeEvent(ctx context.Context, event models.EpisodeEvent) {
	switch event.Type {
	case models.EpisodeOpened:
		result := s.notifier.Dispatch(ctx, event.PatientID, event.Classification)
		if s.episodes == nil {
			return
		}
		rec := &models.EpisodeRecord{
			EpisodeID:      event.EpisodeID,
			PatientID:      event.PatientID,
			Classification: event.Classification,
			OpenedAt:       event.At,
			Cardiovascular: event.Snapshot.Cardiovascular,
			Sudor:          event.Snapshot.Sudor,
			Temperatura:    event.Snapshot.Temperatura,
			Delivered:      result.Delivered,
			Failed:         result.Failed,
			Skipped:        result.Skipped,
		}
		if err := s.episodes.CreateEpisode(ctx, rec); err != nil {
			s.logger.Error("Failed to record alert episode",
				zap.String("episode_id", event.EpisodeID),
				zap.String("patient_id", event.PatientID),
				zap.Error(err),
			)
		}

	case models.EpisodeClosed:
		if s.episodes == nil {
			return
		}
		if err := s.episodes.CloseEpisode(ctx, event.EpisodeID, event.At); err != nil {
			s.logger.Error("Failed to close alert episode",
				zap.String("episode_id", event.EpisodeID),
				zap.String("patient_id", event.PatientID),
				zap.Error(err),
			)
		}
	}
}
