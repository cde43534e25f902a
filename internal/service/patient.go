package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/metrics"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/repository"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/telemetry"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/tracker"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidArgument 参数错误
var ErrInvalidArgument = errors.New("invalid argument")

// ErrForbidden 请求方无权访问该患者数据
var ErrForbidden = errors.New("forbidden")

// maxNoteLength 单条笔记最大字符数
const maxNoteLength = 2000

// 数据来源（用于指标）
const (
	SourceMQTT = "mqtt"
	SourceHTTP = "http"
)

// LinkedPatient 看护人面板中的一个患者
type LinkedPatient struct {
	Link       models.CaregiverLink   `json:"link"`
	Snapshot   models.PatientSnapshot `json:"snapshot"`
	NotesCount int                    `json:"notes_count"`
}

// PatientService 患者遥测与登记操作
type PatientService struct {
	store    *telemetry.Store
	states   tracker.StateStore
	users    UserStore
	links    LinkStore
	tokens   TokenRegistry
	episodes EpisodeStore
	notes    NoteStore
	limits   models.VitalLimits
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewPatientService 创建患者服务（alarm 进程只用到 Ingest，registry 相关依赖可为 nil）
func NewPatientService(
	store *telemetry.Store,
	states tracker.StateStore,
	users UserStore,
	links LinkStore,
	tokens TokenRegistry,
	episodes EpisodeStore,
	notes NoteStore,
	limits models.VitalLimits,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PatientService {
	return &PatientService{
		store:    store,
		states:   states,
		users:    users,
		links:    links,
		tokens:   tokens,
		episodes: episodes,
		notes:    notes,
		limits:   limits,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Snapshot 读取快照；首次读取时写入默认值
func (s *PatientService) Snapshot(ctx context.Context, patientID string) (*models.PatientSnapshot, error) {
	return s.store.GetOrInit(ctx, patientID)
}

// Episode 当前报警周期状态
func (s *PatientService) Episode(ctx context.Context, patientID string) (*models.AlertEpisode, error) {
	return s.states.Load(ctx, patientID)
}

// TogglePanic 翻转 panicMode（不触发推送）
func (s *PatientService) TogglePanic(ctx context.Context, patientID string) (*models.PatientSnapshot, error) {
	return s.store.TogglePanic(ctx, patientID)
}

// SetPanic 设置 panicMode
func (s *PatientService) SetPanic(ctx context.Context, patientID string, on bool) (*models.PatientSnapshot, error) {
	return s.store.SetPanic(ctx, patientID, on)
}

// Ingest 校验设备上报数据并写入遥测存储
func (s *PatientService) Ingest(ctx context.Context, patientID string, reading models.VitalsReading, source string) (*models.PatientSnapshot, error) {
	if strings.TrimSpace(patientID) == "" {
		s.metrics.IngestRejected(source)
		return nil, fmt.Errorf("%w: empty patient id", models.ErrInvalidSnapshot)
	}
	if err := reading.Validate(s.limits); err != nil {
		s.metrics.IngestRejected(source)
		s.logger.Warn("Rejected vitals reading",
			zap.String("patient_id", patientID),
			zap.String("source", source),
			zap.Error(err),
		)
		return nil, err
	}

	snap, err := s.store.ApplyReading(ctx, patientID, reading)
	if err != nil {
		return nil, err
	}
	s.metrics.SnapshotIngested(source)
	return snap, nil
}

// RegisterUser 登记用户
func (s *PatientService) RegisterUser(ctx context.Context, u *models.User) error {
	if strings.TrimSpace(u.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}
	if u.UserType != models.UserTypePatient && u.UserType != models.UserTypeCaregiver {
		return fmt.Errorf("%w: user_type must be patient or caregiver", ErrInvalidArgument)
	}
	if err := s.users.UpsertUser(ctx, u); err != nil {
		return err
	}
	if u.UserType == models.UserTypePatient {
		if _, err := s.store.EnsureInitialized(ctx, u.UserID); err != nil {
			s.logger.Warn("Failed to initialize telemetry node",
				zap.String("patient_id", u.UserID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// RegisterToken 写入或刷新设备推送 token（重复写入不产生重复记录）
func (s *PatientService) RegisterToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return fmt.Errorf("%w: user_id and token are required", ErrInvalidArgument)
	}
	return s.tokens.Upsert(ctx, userID, token, s.now().UTC())
}

// LinkedPatients 看护人绑定的患者及其当前快照（没有绑定时返回空列表）
func (s *PatientService) LinkedPatients(ctx context.Context, caregiverID string) ([]LinkedPatient, error) {
	links, err := s.links.ListByCaregiver(ctx, caregiverID)
	if err != nil {
		return nil, err
	}

	out := make([]LinkedPatient, 0, len(links))
	for _, l := range links {
		snap, err := s.store.Get(ctx, l.PatientID)
		switch {
		case err == nil:
		case errors.Is(err, telemetry.ErrNotFound):
			d := models.DefaultSnapshot(l.PatientID)
			snap = &d
		default:
			return nil, err
		}
		out = append(out, LinkedPatient{Link: l, Snapshot: *snap})
	}

	if len(out) > 0 && s.notes != nil {
		ids := make([]string, len(out))
		for i := range out {
			ids[i] = out[i].Link.PatientID
		}
		counts, err := s.notes.CountByPatients(ctx, ids)
		if err != nil {
			// 计数失败不影响面板
			s.logger.Warn("Failed to count notes",
				zap.String("caregiver_id", caregiverID),
				zap.Error(err),
			)
		}
		for i := range out {
			out[i].NotesCount = counts[out[i].Link.PatientID]
		}
	}
	return out, nil
}

// Caregivers 患者的看护人绑定
func (s *PatientService) Caregivers(ctx context.Context, patientID string) ([]models.CaregiverLink, error) {
	return s.links.ListByPatient(ctx, patientID)
}

// EpisodeHistory 患者最近的报警周期记录
func (s *PatientService) EpisodeHistory(ctx context.Context, patientID string, limit int) ([]models.EpisodeRecord, error) {
	return s.episodes.ListByPatient(ctx, patientID, limit)
}

// AddNote 患者写入一条笔记
func (s *PatientService) AddNote(ctx context.Context, patientID, content string) (*models.Note, error) {
	content = strings.TrimSpace(content)
	if strings.TrimSpace(patientID) == "" || content == "" {
		return nil, fmt.Errorf("%w: patient_id and content are required", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > maxNoteLength {
		return nil, fmt.Errorf("%w: note exceeds %d characters", ErrInvalidArgument, maxNoteLength)
	}

	note := &models.Note{
		NoteID:    uuid.New().String(),
		PatientID: patientID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.notes.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// ListNotes 患者笔记（最新在前）；患者本人或已绑定的看护人可读
func (s *PatientService) ListNotes(ctx context.Context, patientID, requesterID string, limit int) ([]models.Note, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("%w: requester_id is required", ErrInvalidArgument)
	}
	if requesterID != patientID {
		_, err := s.links.FindLink(ctx, requesterID, patientID)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: %s is not linked to %s", ErrForbidden, requesterID, patientID)
		default:
			return nil, err
		}
	}
	return s.notes.ListByPatient(ctx, patientID, limit)
}
