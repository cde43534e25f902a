package service

import (
	"context"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
)

// UserStore 用户存储（由 repository.UsersRepository 实现）
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpsertUser(ctx context.Context, u *models.User) error
	FindPatientByPairingCode(ctx context.Context, code string) (*models.User, error)
	SetPairingCode(ctx context.Context, patientID, code string) error
}

// LinkStore 绑定存储（由 repository.LinksRepository 实现）
type LinkStore interface {
	FindLink(ctx context.Context, caregiverID, patientID string) (*models.CaregiverLink, error)
	CreateLink(ctx context.Context, l *models.CaregiverLink) (bool, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.CaregiverLink, error)
	ListByCaregiver(ctx context.Context, caregiverID string) ([]models.CaregiverLink, error)
}

// TokenRegistry token 存储（由 repository.TokensRepository 实现）
type TokenRegistry interface {
	Upsert(ctx context.Context, userID, token string, ts time.Time) error
}

// EpisodeStore 报警周期审计存储（由 repository.EpisodesRepository 实现）
type EpisodeStore interface {
	CreateEpisode(ctx context.Context, rec *models.EpisodeRecord) error
	CloseEpisode(ctx context.Context, episodeID string, closedAt time.Time) error
	ListByPatient(ctx context.Context, patientID string, limit int) ([]models.EpisodeRecord, error)
}

// NoteStore 患者笔记存储（由 repository.NotesRepository 实现）
type NoteStore interface {
	CreateNote(ctx context.Context, n *models.Note) error
	ListByPatient(ctx context.Context, patientID string, limit int) ([]models.Note, error)
	CountByPatients(ctx context.Context, patientIDs []string) (map[string]int, error)
}
