package dispatcher

import (
	"context"
	"fmt"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
)

// 接收方模式
const (
	ModePatient    = "patient"
	ModeCaregivers = "caregivers"
	ModeBoth       = "both"
)

// TokenSource 推送 token 来源
type TokenSource interface {
	Primary(ctx context.Context, userID string) (*models.DeliveryToken, error)
	ListByUser(ctx context.Context, userID string) ([]models.DeliveryToken, error)
}

// LinkSource 看护人绑定来源
type LinkSource interface {
	ListByPatient(ctx context.Context, patientID string) ([]models.CaregiverLink, error)
}

// RecipientResolver 解析报警推送的目标 token（结果已去重）
type RecipientResolver interface {
	Resolve(ctx context.Context, patientID string) ([]string, error)
}

// NewResolver 按模式创建解析器
func NewResolver(mode string, tokens TokenSource, links LinkSource) (RecipientResolver, error) {
	switch mode {
	case ModePatient:
		return &PatientSelfResolver{tokens: tokens}, nil
	case ModeCaregivers:
		return &CaregiverFanoutResolver{tokens: tokens, links: links}, nil
	case ModeBoth:
		return MultiResolver{
			&PatientSelfResolver{tokens: tokens},
			&CaregiverFanoutResolver{tokens: tokens, links: links},
		}, nil
	default:
		return nil, fmt.Errorf("unknown recipient mode: %q", mode)
	}
}

// PatientSelfResolver 推送给报警患者本人最近注册的设备
type PatientSelfResolver struct {
	tokens TokenSource
}

func (r *PatientSelfResolver) Resolve(ctx context.Context, patientID string) ([]string, error) {
	tok, err := r.tokens.Primary(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve patient token: %w", err)
	}
	if tok == nil || tok.Token == "" {
		return nil, nil
	}
	return []string{tok.Token}, nil
}

// CaregiverFanoutResolver 推送给所有绑定看护人的全部设备
type CaregiverFanoutResolver struct {
	tokens TokenSource
	links  LinkSource
}

func (r *CaregiverFanoutResolver) Resolve(ctx context.Context, patientID string) ([]string, error) {
	links, err := r.links.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list caregiver links: %w", err)
	}

	seenCaregiver := make(map[string]bool, len(links))
	seenToken := make(map[string]bool)
	var out []string
	for _, l := range links {
		if seenCaregiver[l.CaregiverID] {
			continue
		}
		seenCaregiver[l.CaregiverID] = true

		toks, err := r.tokens.ListByUser(ctx, l.CaregiverID)
		if err != nil {
			return nil, fmt.Errorf("failed to list caregiver tokens: %w", err)
		}
		for _, t := range toks {
			if t.Token == "" || seenToken[t.Token] {
				continue
			}
			seenToken[t.Token] = true
			out = append(out, t.Token)
		}
	}
	return out, nil
}

// MultiResolver 合并多个解析器的结果
type MultiResolver []RecipientResolver

func (m MultiResolver) Resolve(ctx context.Context, patientID string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, r := range m {
		toks, err := r.Resolve(ctx, patientID)
		if err != nil {
			return nil, err
		}
		for _, t := range toks {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}
