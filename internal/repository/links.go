package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"go.uber.org/zap"
)

// LinksRepository 看护人-患者绑定仓库
type LinksRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLinksRepository 创建绑定仓库
func NewLinksRepository(db *sql.DB, logger *zap.Logger) *LinksRepository {
	return &LinksRepository{
		db:     db,
		logger: logger,
	}
}

// FindLink 按 (caregiver, patient) 精确查找
func (r *LinksRepository) FindLink(ctx context.Context, caregiverID, patientID string) (*models.CaregiverLink, error) {
	query := `
		SELECT link_id, caregiver_id, patient_id, linked_at
		FROM caregiver_patient_links
		WHERE caregiver_id = $1 AND patient_id = $2
	`

	var l models.CaregiverLink
	err := r.db.QueryRowContext(ctx, query, caregiverID, patientID).Scan(
		&l.LinkID,
		&l.CaregiverID,
		&l.PatientID,
		&l.LinkedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query link: %w", err)
	}
	return &l, nil
}

// CreateLink 创建绑定；(caregiver, patient) 已存在时不写入并返回 false
func (r *LinksRepository) CreateLink(ctx context.Context, l *models.CaregiverLink) (bool, error) {
	query := `
		INSERT INTO caregiver_patient_links (link_id, caregiver_id, patient_id, linked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (caregiver_id, patient_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, l.LinkID, l.CaregiverID, l.PatientID, l.LinkedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert link: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// ListByPatient 患者的全部看护人绑定
func (r *LinksRepository) ListByPatient(ctx context.Context, patientID string) ([]models.CaregiverLink, error) {
	query := `
		SELECT link_id, caregiver_id, patient_id, linked_at
		FROM caregiver_patient_links
		WHERE patient_id = $1
		ORDER BY linked_at
	`
	return r.list(ctx, query, patientID)
}

// ListByCaregiver 看护人绑定的全部患者
func (r *LinksRepository) ListByCaregiver(ctx context.Context, caregiverID string) ([]models.CaregiverLink, error) {
	query := `
		SELECT link_id, caregiver_id, patient_id, linked_at
		FROM caregiver_patient_links
		WHERE caregiver_id = $1
		ORDER BY linked_at
	`
	return r.list(ctx, query, caregiverID)
}

func (r *LinksRepository) list(ctx context.Context, query string, arg string) ([]models.CaregiverLink, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	links := make([]models.CaregiverLink, 0)
	for rows.Next() {
		var l models.CaregiverLink
		if err := rows.Scan(&l.LinkID, &l.CaregiverID, &l.PatientID, &l.LinkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}
	return links, nil
}
