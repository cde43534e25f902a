package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"go.uber.org/zap"
)

// ErrPairingCodeTaken 配对码已被其他患者占用
var ErrPairingCodeTaken = errors.New("pairing code already in use")

// UsersRepository 用户仓库
type UsersRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUsersRepository 创建用户仓库
func NewUsersRepository(db *sql.DB, logger *zap.Logger) *UsersRepository {
	return &UsersRepository{
		db:     db,
		logger: logger,
	}
}

// GetUser 根据 ID 获取用户
func (r *UsersRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT user_id, user_type, display_name, pairing_code, created_at
		FROM users
		WHERE user_id = $1
	`

	var u models.User
	var code sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&u.UserID,
		&u.UserType,
		&u.DisplayName,
		&code,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if code.Valid {
		u.PairingCode = &code.String
	}
	return &u, nil
}

// UpsertUser 创建用户，已存在时更新类型和名称
func (r *UsersRepository) UpsertUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (user_id, user_type, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET user_type = EXCLUDED.user_type, display_name = EXCLUDED.display_name
	`
	if _, err := r.db.ExecContext(ctx, query, u.UserID, u.UserType, u.DisplayName); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// FindPatientByPairingCode 按配对码查找患者（只匹配 user_type = 'patient'）
func (r *UsersRepository) FindPatientByPairingCode(ctx context.Context, code string) (*models.User, error) {
	query := `
		SELECT user_id, user_type, display_name, pairing_code, created_at
		FROM users
		WHERE pairing_code = $1 AND user_type = $2
		LIMIT 1
	`

	var u models.User
	var pc sql.NullString
	err := r.db.QueryRowContext(ctx, query, code, models.UserTypePatient).Scan(
		&u.UserID,
		&u.UserType,
		&u.DisplayName,
		&pc,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query pairing code: %w", err)
	}
	if pc.Valid {
		u.PairingCode = &pc.String
	}
	return &u, nil
}

// SetPairingCode 设置患者的配对码
func (r *UsersRepository) SetPairingCode(ctx context.Context, patientID, code string) error {
	query := `
		UPDATE users SET pairing_code = $1
		WHERE user_id = $2 AND user_type = $3
	`
	res, err := r.db.ExecContext(ctx, query, code, patientID, models.UserTypePatient)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPairingCodeTaken
		}
		return fmt.Errorf("failed to set pairing code: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
