package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/repository"
)

type fakeUsers struct {
	mu      sync.Mutex
	users   map[string]*models.User
	taken   int // SetPairingCode 前 N 次返回 ErrPairingCodeTaken
	setCall int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*models.User{}}
}

func (f *fakeUsers) GetUser(_ context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpsertUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.UserID] = &cp
	return nil
}

func (f *fakeUsers) FindPatientByPairingCode(_ context.Context, code string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.UserType == models.UserTypePatient && u.PairingCode != nil && *u.PairingCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) SetPairingCode(_ context.Context, patientID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCall++
	if f.setCall <= f.taken {
		return repository.ErrPairingCodeTaken
	}
	u, ok := f.users[patientID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PairingCode = &code
	return nil
}

type fakeLinks struct {
	mu    sync.Mutex
	links []models.CaregiverLink
	// hideOnFind 为 true 时 FindLink 第一次总是返回未找到（模拟并发写入）
	hideOnFind bool
	finds      int
}

func (f *fakeLinks) FindLink(_ context.Context, caregiverID, patientID string) (*models.CaregiverLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.hideOnFind && f.finds == 1 {
		return nil, repository.ErrNotFound
	}
	for _, l := range f.links {
		if l.CaregiverID == caregiverID && l.PatientID == patientID {
			cp := l
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeLinks) CreateLink(_ context.Context, l *models.CaregiverLink) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.links {
		if existing.CaregiverID == l.CaregiverID && existing.PatientID == l.PatientID {
			return false, nil
		}
	}
	f.links = append(f.links, *l)
	return true, nil
}

func (f *fakeLinks) ListByPatient(_ context.Context, patientID string) ([]models.CaregiverLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CaregiverLink
	for _, l := range f.links {
		if l.PatientID == patientID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLinks) ListByCaregiver(_ context.Context, caregiverID string) ([]models.CaregiverLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CaregiverLink
	for _, l := range f.links {
		if l.CaregiverID == caregiverID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out, nil
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func (f *fakeTokens) Upsert(_ context.Context, userID, token string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens == nil {
		f.tokens = map[string]time.Time{}
	}
	f.tokens[userID+"/"+token] = ts
	return nil
}

type fakeEpisodes struct {
	mu      sync.Mutex
	records map[string]*models.EpisodeRecord
	order   []string
}

func newFakeEpisodes() *fakeEpisodes {
	return &fakeEpisodes{records: map[string]*models.EpisodeRecord{}}
}

func (f *fakeEpisodes) CreateEpisode(_ context.Context, rec *models.EpisodeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.EpisodeID]; ok {
		return nil
	}
	cp := *rec
	f.records[rec.EpisodeID] = &cp
	f.order = append(f.order, rec.EpisodeID)
	return nil
}

func (f *fakeEpisodes) CloseEpisode(_ context.Context, episodeID string, closedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[episodeID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.ClosedAt = &closedAt
	return nil
}

func (f *fakeEpisodes) ListByPatient(_ context.Context, patientID string, limit int) ([]models.EpisodeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EpisodeRecord
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		rec := f.records[f.order[i]]
		if rec.PatientID == patientID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

type fakeNotes struct {
	mu    sync.Mutex
	notes []models.Note
	// countErr 非空时 CountByPatients 返回该错误
	countErr error
}

func (f *fakeNotes) CreateNote(_ context.Context, n *models.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, *n)
	return nil
}

func (f *fakeNotes) ListByPatient(_ context.Context, patientID string, limit int) ([]models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Note{}
	for i := len(f.notes) - 1; i >= 0 && len(out) < limit; i-- {
		if f.notes[i].PatientID == patientID {
			out = append(out, f.notes[i])
		}
	}
	return out, nil
}

func (f *fakeNotes) CountByPatients(_ context.Context, patientIDs []string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return nil, f.countErr
	}
	counts := map[string]int{}
	for _, id := range patientIDs {
		for _, n := range f.notes {
			if n.PatientID == id {
				counts[id]++
			}
		}
	}
	return counts, nil
}
