package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pairingCodeLength   = 6
	pairingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	pairingIssueRetries = 5
)

var (
	// ErrInvalidPairingCode 配对码格式错误
	ErrInvalidPairingCode = errors.New("invalid pairing code")
	// ErrPairingCodeNotFound 配对码未对应任何患者
	ErrPairingCodeNotFound = errors.New("pairing code not found")
)

// RedeemOutcome 配对结果
type RedeemOutcome string

const (
	OutcomeLinked        RedeemOutcome = "linked"
	OutcomeAlreadyLinked RedeemOutcome = "already_linked"
	OutcomeNotFound      RedeemOutcome = "not_found"
)

// RedeemResult 配对结果
type RedeemResult struct {
	Outcome   RedeemOutcome         `json:"outcome"`
	PatientID string                `json:"patient_id,omitempty"`
	Link      *models.CaregiverLink `json:"link,omitempty"`
}

// PairingService 配对码签发与兑换
type PairingService struct {
	users  UserStore
	links  LinkStore
	logger *zap.Logger
	now    func() time.Time
}

// NewPairingService 创建配对服务
func NewPairingService(users UserStore, links LinkStore, logger *zap.Logger) *PairingService {
	return &PairingService{
		users:  users,
		links:  links,
		logger: logger,
		now:    time.Now,
	}
}

// NormalizePairingCode 去空白并转大写，校验 6 位 A-Z0-9
func NormalizePairingCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != pairingCodeLength {
		return "", ErrInvalidPairingCode
	}
	for _, c := range code {
		if !strings.ContainsRune(pairingCodeAlphabet, c) {
			return "", ErrInvalidPairingCode
		}
	}
	return code, nil
}

// IssueCode 为患者生成新的配对码（冲突时重新生成）
func (s *PairingService) IssueCode(ctx context.Context, patientID string) (string, error) {
	for i := 0; i < pairingIssueRetries; i++ {
		code, err := generatePairingCode()
		if err != nil {
			return "", err
		}

		err = s.users.SetPairingCode(ctx, patientID, code)
		if err == nil {
			s.logger.Info("Pairing code issued",
				zap.String("patient_id", patientID),
			)
			return code, nil
		}
		if !errors.Is(err, repository.ErrPairingCodeTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to issue unique pairing code after %d attempts", pairingIssueRetries)
}

// Redeem 看护人兑换配对码：先查询后创建，已绑定时返回 already_linked
func (s *PairingService) Redeem(ctx context.Context, caregiverID, rawCode string) (*RedeemResult, error) {
	code, err := NormalizePairingCode(rawCode)
	if err != nil {
		return nil, err
	}

	patient, err := s.users.FindPatientByPairingCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &RedeemResult{Outcome: OutcomeNotFound}, nil
		}
		return nil, fmt.Errorf("failed to look up pairing code: %w", err)
	}

	existing, err := s.links.FindLink(ctx, caregiverID, patient.UserID)
	if err == nil {
		return &RedeemResult{Outcome: OutcomeAlreadyLinked, PatientID: patient.UserID, Link: existing}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up link: %w", err)
	}

	link := &models.CaregiverLink{
		LinkID:      uuid.New().String(),
		CaregiverID: caregiverID,
		PatientID:   patient.UserID,
		LinkedAt:    s.now().UTC(),
	}
	created, err := s.links.CreateLink(ctx, link)
	if err != nil {
		return nil, err
	}
	if !created {
		// 查询与写入之间被并发请求抢先，唯一约束保证只有一条
		existing, err := s.links.FindLink(ctx, caregiverID, patient.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up link: %w", err)
		}
		return &RedeemResult{Outcome: OutcomeAlreadyLinked, PatientID: patient.UserID, Link: existing}, nil
	}

	s.logger.Info("Caregiver linked to patient",
		zap.String("caregiver_id", caregiverID),
		zap.String("patient_id", patient.UserID),
	)
	return &RedeemResult{Outcome: OutcomeLinked, PatientID: patient.UserID, Link: link}, nil
}

func generatePairingCode() (string, error) {
	max := big.NewInt(int64(len(pairingCodeAlphabet)))
	b := make([]byte, pairingCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate pairing code: %w", err)
		}
		b[i] = pairingCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
