package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"go.uber.org/zap"
)

// EpisodesRepository 报警周期审计仓库
type EpisodesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEpisodesRepository 创建审计仓库
func NewEpisodesRepository(db *sql.DB, logger *zap.Logger) *EpisodesRepository {
	return &EpisodesRepository{
		db:     db,
		logger: logger,
	}
}

// CreateEpisode 写入报警周期打开记录（含推送结果）
func (r *EpisodesRepository) CreateEpisode(ctx context.Context, rec *models.EpisodeRecord) error {
	query := `
		INSERT INTO alert_episodes (
			episode_id, patient_id, classification, opened_at,
			cardiovascular, sudor, temperatura,
			delivered, failed, skipped
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (episode_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.EpisodeID,
		rec.PatientID,
		rec.Classification,
		rec.OpenedAt,
		rec.Cardiovascular,
		rec.Sudor,
		rec.Temperatura,
		rec.Delivered,
		rec.Failed,
		rec.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert episode: %w", err)
	}
	return nil
}

// CloseEpisode 记录报警周期关闭时间
func (r *EpisodesRepository) CloseEpisode(ctx context.Context, episodeID string, closedAt time.Time) error {
	query := `
		UPDATE alert_episodes SET closed_at = $1
		WHERE episode_id = $2 AND closed_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, closedAt, episodeID); err != nil {
		return fmt.Errorf("failed to close alert episode: %w", err)
	}
	return nil
}

// ListByPatient 患者最近的报警周期
func (r *EpisodesRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]models.EpisodeRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT episode_id, patient_id, classification, opened_at, closed_at,
		       cardiovascular, sudor, temperatura, delivered, failed, skipped
		FROM alert_episodes
		WHERE patient_id = $1
		ORDER BY opened_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert episodes: %w", err)
	}
	defer rows.Close()

	records := make([]models.EpisodeRecord, 0)
	for rows.Next() {
		var rec models.EpisodeRecord
		var closedAt sql.NullTime
		if err := rows.Scan(
			&rec.EpisodeID,
			&rec.PatientID,
			&rec.Classification,
			&rec.OpenedAt,
			&closedAt,
			&rec.Cardiovascular,
			&rec.Sudor,
			&rec.Temperatura,
			&rec.Delivered,
			&rec.Failed,
			&rec.Skipped,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert episode: %w", err)
		}
		if closedAt.Valid {
			t := closedAt.Time
			rec.ClosedAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert episodes: %w", err)
	}
	return records, nil
}
