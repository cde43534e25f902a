package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"go.uber.org/zap"
)

// TokensRepository 推送 token 仓库
type TokensRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTokensRepository 创建 token 仓库
func NewTokensRepository(db *sql.DB, logger *zap.Logger) *TokensRepository {
	return &TokensRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert 写入或刷新 token（同一 token 重复写入只更新时间戳）
func (r *TokensRepository) Upsert(ctx context.Context, userID, token string, ts time.Time) error {
	query := `
		INSERT INTO delivery_tokens (user_id, token, timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token) DO UPDATE SET timestamp = EXCLUDED.timestamp
	`
	if _, err := r.db.ExecContext(ctx, query, userID, token, ts); err != nil {
		return fmt.Errorf("failed to upsert delivery token: %w", err)
	}
	return nil
}

// Primary 用户最近刷新的 token，没有时返回 nil
func (r *TokensRepository) Primary(ctx context.Context, userID string) (*models.DeliveryToken, error) {
	query := `
		SELECT user_id, token, timestamp
		FROM delivery_tokens
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var t models.DeliveryToken
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&t.UserID, &t.Token, &t.Timestamp)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query delivery token: %w", err)
	}
	return &t, nil
}

// ListByUser 用户的全部 token（多设备）
func (r *TokensRepository) ListByUser(ctx context.Context, userID string) ([]models.DeliveryToken, error) {
	query := `
		SELECT user_id, token, timestamp
		FROM delivery_tokens
		WHERE user_id = $1
		ORDER BY timestamp DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]models.DeliveryToken, 0)
	for rows.Next() {
		var t models.DeliveryToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan delivery token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery tokens: %w", err)
	}
	return tokens, nil
}

// Delete 删除 token（推送服务报告 token 失效时）
func (r *TokensRepository) Delete(ctx context.Context, userID, token string) error {
	query := `DELETE FROM delivery_tokens WHERE user_id = $1 AND token = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("failed to delete delivery token: %w", err)
	}
	return nil
}
