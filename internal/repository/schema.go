package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// schemaStatements 建表语句（幂等）
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id      TEXT PRIMARY KEY,
		user_type    TEXT NOT NULL CHECK (user_type IN ('patient', 'caregiver')),
		display_name TEXT NOT NULL DEFAULT '',
		pairing_code TEXT UNIQUE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS caregiver_patient_links (
		link_id      UUID PRIMARY KEY,
		caregiver_id TEXT NOT NULL,
		patient_id   TEXT NOT NULL,
		linked_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (caregiver_id, patient_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_patient ON caregiver_patient_links (patient_id)`,
	`CREATE TABLE IF NOT EXISTS delivery_tokens (
		user_id   TEXT NOT NULL,
		token     TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, token)
	)`,
	`CREATE TABLE IF NOT EXISTS alert_episodes (
		episode_id     UUID PRIMARY KEY,
		patient_id     TEXT NOT NULL,
		classification TEXT NOT NULL,
		opened_at      TIMESTAMPTZ NOT NULL,
		closed_at      TIMESTAMPTZ,
		cardiovascular DOUBLE PRECISION NOT NULL DEFAULT 0,
		sudor          DOUBLE PRECISION NOT NULL DEFAULT 0,
		temperatura    DOUBLE PRECISION NOT NULL DEFAULT 0,
		delivered      INTEGER NOT NULL DEFAULT 0,
		failed         INTEGER NOT NULL DEFAULT 0,
		skipped        BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_episodes_patient ON alert_episodes (patient_id, opened_at DESC)`,
	`CREATE TABLE IF NOT EXISTS notes (
		note_id    UUID PRIMARY KEY,
		patient_id TEXT NOT NULL,
		content    TEXT NOT NULL,
		analysis   TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_patient ON notes (patient_id, created_at DESC)`,
}

// EnsureSchema 创建所需的表
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// isUniqueViolation 唯一约束冲突（SQLSTATE 23505）
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
