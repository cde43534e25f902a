package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// NotesRepository 患者笔记仓库
type NotesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotesRepository 创建笔记仓库
func NewNotesRepository(db *sql.DB, logger *zap.Logger) *NotesRepository {
	return &NotesRepository{
		db:     db,
		logger: logger,
	}
}

// CreateNote 写入一条笔记
func (r *NotesRepository) CreateNote(ctx context.Context, n *models.Note) error {
	query := `
		INSERT INTO notes (note_id, patient_id, content, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, n.NoteID, n.PatientID, n.Content, n.Analysis, n.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// ListByPatient 患者笔记，最新的在前
func (r *NotesRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]models.Note, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT note_id, patient_id, content, analysis, created_at
		FROM notes
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.NoteID, &n.PatientID, &n.Content, &n.Analysis, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// CountByPatients 批量统计笔记数量；没有笔记的患者不出现在结果中
func (r *NotesRepository) CountByPatients(ctx context.Context, patientIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(patientIDs))
	if len(patientIDs) == 0 {
		return counts, nil
	}
	query := `
		SELECT patient_id, COUNT(*)
		FROM notes
		WHERE patient_id = ANY($1)
		GROUP BY patient_id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(patientIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to count notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan note count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate note counts: %w", err)
	}
	return counts, nil
}
