package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/repository"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePatients struct {
	snaps     map[string]*models.PatientSnapshot
	ingested  []models.VitalsReading
	ingestErr error
	readErr   error
	tokens    map[string]string
	users     []*models.User
	notes     []models.Note
	linked    map[string]bool // caregiverID/patientID
}

func newFakePatients() *fakePatients {
	return &fakePatients{
		snaps:  map[string]*models.PatientSnapshot{},
		tokens: map[string]string{},
		linked: map[string]bool{},
	}
}

func (f *fakePatients) get(id string) *models.PatientSnapshot {
	s, ok := f.snaps[id]
	if !ok {
		d := models.DefaultSnapshot(id)
		s = &d
		f.snaps[id] = s
	}
	return s
}

func (f *fakePatients) Snapshot(_ context.Context, id string) (*models.PatientSnapshot, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.get(id), nil
}

func (f *fakePatients) Episode(_ context.Context, id string) (*models.AlertEpisode, error) {
	return &models.AlertEpisode{PatientID: id, Classification: models.ClassificationNone}, nil
}

func (f *fakePatients) TogglePanic(_ context.Context, id string) (*models.PatientSnapshot, error) {
	s := f.get(id)
	s.PanicMode = !s.PanicMode
	s.Version++
	return s, nil
}

func (f *fakePatients) SetPanic(_ context.Context, id string, on bool) (*models.PatientSnapshot, error) {
	s := f.get(id)
	s.PanicMode = on
	s.Version++
	return s, nil
}

func (f *fakePatients) Ingest(_ context.Context, id string, reading models.VitalsReading, _ string) (*models.PatientSnapshot, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	f.ingested = append(f.ingested, reading)
	s := f.get(id)
	if reading.Cardiovascular != nil {
		s.Cardiovascular = *reading.Cardiovascular
	}
	s.Version++
	return s, nil
}

func (f *fakePatients) Caregivers(_ context.Context, id string) ([]models.CaregiverLink, error) {
	return nil, nil
}

func (f *fakePatients) EpisodeHistory(_ context.Context, id string, limit int) ([]models.EpisodeRecord, error) {
	out := make([]models.EpisodeRecord, 0, limit)
	for i := 0; i < limit && i < 3; i++ {
		out = append(out, models.EpisodeRecord{PatientID: id})
	}
	return out, nil
}

func (f *fakePatients) LinkedPatients(_ context.Context, caregiverID string) ([]service.LinkedPatient, error) {
	return []service.LinkedPatient{}, nil
}

func (f *fakePatients) AddNote(_ context.Context, id, content string) (*models.Note, error) {
	if strings.TrimSpace(content) == "" {
		return nil, service.ErrInvalidArgument
	}
	n := models.Note{NoteID: "n-" + id, PatientID: id, Content: content}
	f.notes = append(f.notes, n)
	return &n, nil
}

func (f *fakePatients) ListNotes(_ context.Context, id, requesterID string, _ int) ([]models.Note, error) {
	if requesterID == "" {
		return nil, service.ErrInvalidArgument
	}
	if requesterID != id && !f.linked[requesterID+"/"+id] {
		return nil, service.ErrForbidden
	}
	var out []models.Note
	for _, n := range f.notes {
		if n.PatientID == id {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakePatients) RegisterUser(_ context.Context, u *models.User) error {
	if u.UserType != models.UserTypePatient && u.UserType != models.UserTypeCaregiver {
		return service.ErrInvalidArgument
	}
	f.users = append(f.users, u)
	return nil
}

func (f *fakePatients) RegisterToken(_ context.Context, userID, token string) error {
	if strings.TrimSpace(token) == "" {
		return service.ErrInvalidArgument
	}
	f.tokens[userID] = token
	return nil
}

type fakePairing struct {
	issued map[string]string
}

func (f *fakePairing) IssueCode(_ context.Context, patientID string) (string, error) {
	if patientID == "missing" {
		return "", repository.ErrNotFound
	}
	f.issued[patientID] = "AB12CD"
	return "AB12CD", nil
}

func (f *fakePairing) Redeem(_ context.Context, caregiverID, code string) (*service.RedeemResult, error) {
	normalized, err := service.NormalizePairingCode(code)
	if err != nil {
		return nil, err
	}
	for patientID, c := range f.issued {
		if c == normalized {
			return &service.RedeemResult{Outcome: service.OutcomeLinked, PatientID: patientID}, nil
		}
	}
	return &service.RedeemResult{Outcome: service.OutcomeNotFound}, nil
}

func newTestRouter(p *fakePatients, pairing *fakePairing) *Router {
	logger := zap.NewNop()
	r := NewRouter(nil, logger)
	r.RegisterPatientRoutes(NewPatientHandler(p, logger))
	r.RegisterUserRoutes(NewUserHandler(p, logger))
	r.RegisterPairingRoutes(NewPairingHandler(pairing, logger))
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func TestSnapshot_WrapsResult(t *testing.T) {
	r := newTestRouter(newFakePatients(), &fakePairing{issued: map[string]string{}})

	w, out := do(t, r, http.MethodGet, "/api/v1/patients/p-1/snapshot", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(ResultSuccess), out["code"])
	result := out["result"].(map[string]any)
	assert.Equal(t, "p-1", result["patient_id"])
	assert.Equal(t, false, result["panicMode"])
}

func TestSnapshot_ReadFailureIsRetryable5xx(t *testing.T) {
	p := newFakePatients()
	p.readErr = errors.New("redis down")
	r := newTestRouter(p, &fakePairing{issued: map[string]string{}})

	w, out := do(t, r, http.MethodGet, "/api/v1/patients/p-1/snapshot", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, float64(ResultError), out["code"])
	assert.Equal(t, "error", out["type"])
}

func TestPostVitals(t *testing.T) {
	p := newFakePatients()
	r := newTestRouter(p, &fakePairing{issued: map[string]string{}})

	w, out := do(t, r, http.MethodPost, "/api/v1/patients/p-1/vitals", `{"cardiovascular":125}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 125.0, out["result"].(map[string]any)["cardiovascular"])
	require.Len(t, p.ingested, 1)

	w, _ = do(t, r, http.MethodPost, "/api/v1/patients/p-1/vitals", `{bad`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	p.ingestErr = models.ErrInvalidSnapshot
	w, out = do(t, r, http.MethodPost, "/api/v1/patients/p-1/vitals", `{"cardiovascular":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(ResultError), out["code"])
}

func TestPanicRoutes(t *testing.T) {
	r := newTestRouter(newFakePatients(), &fakePairing{issued: map[string]string{}})

	_, out := do(t, r, http.MethodPost, "/api/v1/patients/p-1/panic/toggle", "")
	assert.Equal(t, true, out["result"].(map[string]any)["panicMode"])

	_, out = do(t, r, http.MethodPut, "/api/v1/patients/p-1/panic", `{"panicMode":false}`)
	assert.Equal(t, false, out["result"].(map[string]any)["panicMode"])

	w, _ := do(t, r, http.MethodPut, "/api/v1/patients/p-1/panic", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/patients/p-1/panic/toggle", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestEpisodesAndCaregiverLists(t *testing.T) {
	r := newTestRouter(newFakePatients(), &fakePairing{issued: map[string]string{}})

	_, out := do(t, r, http.MethodGet, "/api/v1/patients/p-1/episodes?limit=2", "")
	assert.Len(t, out["result"].([]any), 2)

	_, out = do(t, r, http.MethodGet, "/api/v1/patients/p-1/caregivers", "")
	assert.Equal(t, []any{}, out["result"])

	_, out = do(t, r, http.MethodGet, "/api/v1/caregivers/c-1/patients", "")
	assert.Equal(t, []any{}, out["result"])

	_, out = do(t, r, http.MethodGet, "/api/v1/patients/p-1/episode", "")
	assert.Equal(t, "none", out["result"].(map[string]any)["classification"])
}

func TestNotesRoutes(t *testing.T) {
	p := newFakePatients()
	r := newTestRouter(p, &fakePairing{issued: map[string]string{}})

	_, out := do(t, r, http.MethodGet, "/api/v1/patients/p-1/notes?requester_id=p-1", "")
	assert.Equal(t, []any{}, out["result"])

	w, out := do(t, r, http.MethodPost, "/api/v1/patients/p-1/notes", `{"content":"me duele la cabeza"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "me duele la cabeza", out["result"].(map[string]any)["content"])

	w, _ = do(t, r, http.MethodPost, "/api/v1/patients/p-1/notes", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = do(t, r, http.MethodGet, "/api/v1/patients/p-1/notes?requester_id=c-1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, float64(ResultError), out["code"])

	p.linked["c-1/p-1"] = true
	w, out = do(t, r, http.MethodGet, "/api/v1/patients/p-1/notes?requester_id=c-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["result"].([]any), 1)

	w, _ = do(t, r, http.MethodGet, "/api/v1/patients/p-1/notes", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserAndTokenRegistration(t *testing.T) {
	p := newFakePatients()
	r := newTestRouter(p, &fakePairing{issued: map[string]string{}})

	w, _ := do(t, r, http.MethodPut, "/api/v1/users/p-1", `{"user_type":"patient","display_name":"Ana"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, p.users, 1)
	assert.Equal(t, "Ana", p.users[0].DisplayName)

	w, _ = do(t, r, http.MethodPut, "/api/v1/users/p-2", `{"user_type":"nurse"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPut, "/api/v1/users/p-1/tokens", `{"token":"tok-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-1", p.tokens["p-1"])

	w, _ = do(t, r, http.MethodPut, "/api/v1/users/p-1/tokens", `{"token":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPairingRoutes(t *testing.T) {
	pairing := &fakePairing{issued: map[string]string{}}
	r := newTestRouter(newFakePatients(), pairing)

	_, out := do(t, r, http.MethodPost, "/api/v1/patients/p-1/pairing-code", "")
	assert.Equal(t, "AB12CD", out["result"].(map[string]any)["pairing_code"])

	w, _ := do(t, r, http.MethodPost, "/api/v1/patients/missing/pairing-code", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, out = do(t, r, http.MethodPost, "/api/v1/caregivers/c-1/links", `{"code":" ab12cd "}`)
	result := out["result"].(map[string]any)
	assert.Equal(t, "linked", result["outcome"])
	assert.Equal(t, "p-1", result["patient_id"])

	_, out = do(t, r, http.MethodPost, "/api/v1/caregivers/c-1/links", `{"code":"ZZZZZZ"}`)
	assert.Equal(t, float64(ResultSuccess), out["code"])
	assert.Equal(t, "not_found", out["result"].(map[string]any)["outcome"])

	w, _ = do(t, r, http.MethodPost, "/api/v1/caregivers/c-1/links", `{"code":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(newFakePatients(), &fakePairing{issued: map[string]string{}})
	w, out := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["result"])
}
