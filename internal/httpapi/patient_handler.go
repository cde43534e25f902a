package httpapi

import (
	"context"
	"net/http"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/service"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PatientAPI 患者服务（由 service.PatientService 实现）
type PatientAPI interface {
	Snapshot(ctx context.Context, patientID string) (*models.PatientSnapshot, error)
	Episode(ctx context.Context, patientID string) (*models.AlertEpisode, error)
	TogglePanic(ctx context.Context, patientID string) (*models.PatientSnapshot, error)
	SetPanic(ctx context.Context, patientID string, on bool) (*models.PatientSnapshot, error)
	Ingest(ctx context.Context, patientID string, reading models.VitalsReading, source string) (*models.PatientSnapshot, error)
	Caregivers(ctx context.Context, patientID string) ([]models.CaregiverLink, error)
	EpisodeHistory(ctx context.Context, patientID string, limit int) ([]models.EpisodeRecord, error)
	LinkedPatients(ctx context.Context, caregiverID string) ([]service.LinkedPatient, error)
	AddNote(ctx context.Context, patientID, content string) (*models.Note, error)
	ListNotes(ctx context.Context, patientID, requesterID string, limit int) ([]models.Note, error)
}

// PatientHandler 患者 Handler
type PatientHandler struct {
	patients PatientAPI
	logger   *zap.Logger
}

// NewPatientHandler 创建患者 Handler
func NewPatientHandler(patients PatientAPI, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{patients: patients, logger: logger}
}

// GetSnapshot 读取快照（首次读取时初始化默认值）
func (h *PatientHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := h.patients.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "GetSnapshot", err, zap.String("patient_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}

// PostVitals 设备数据 HTTP 接入
func (h *PatientHandler) PostVitals(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var reading models.VitalsReading
	if err := readBodyJSON(r, maxBodyBytes, &reading); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	snap, err := h.patients.Ingest(r.Context(), id, reading, service.SourceHTTP)
	if err != nil {
		writeError(w, h.logger, "PostVitals", err, zap.String("patient_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}

// TogglePanic 切换 panicMode
func (h *PatientHandler) TogglePanic(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := h.patients.TogglePanic(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "TogglePanic", err, zap.String("patient_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}

// SetPanic 设置 panicMode: {"panicMode": true}
func (h *PatientHandler) SetPanic(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload struct {
		PanicMode *bool `json:"panicMode"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil || payload.PanicMode == nil {
		writeJSON(w, http.StatusBadRequest, Fail("panicMode is required"))
		return
	}

	snap, err := h.patients.SetPanic(r.Context(), id, *payload.PanicMode)
	if err != nil {
		writeError(w, h.logger, "SetPanic", err, zap.String("patient_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}

// GetEpisode 当前报警周期
func (h *PatientHandler) GetEpisode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ep, err := h.patients.Episode(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "GetEpisode", err, zap.String("patient_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(ep))
}

// ListEpisodes 报警周期历史（?limit=，默认 50）
func (h *PatientHandler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit := parseInt(r.URL.Query().Get("limit"), 50)

	records, err := h.patients.EpisodeHistory(r.Context(), id, limit)
	if err != nil {
		writeError(w, h.logger, "ListEpisodes", err, zap.String("patient_id", id))
		return
	}
	if records == nil {
		records = []models.EpisodeRecord{}
	}
	writeJSON(w, http.StatusOK, Ok(records))
}

// ListCaregivers 患者的看护人
func (h *PatientHandler) ListCaregivers(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	links, err := h.patients.Caregivers(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "ListCaregivers", err, zap.String("patient_id", id))
		return
	}
	if links == nil {
		links = []models.CaregiverLink{}
	}
	writeJSON(w, http.StatusOK, Ok(links))
}

// ListLinkedPatients 看护人面板
func (h *PatientHandler) ListLinkedPatients(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	patients, err := h.patients.LinkedPatients(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "ListLinkedPatients", err, zap.String("caregiver_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(patients))
}

// PostNote 患者写笔记: {"content": "..."}
func (h *PatientHandler) PostNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload struct {
		Content string `json:"content"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	note, err := h.patients.AddNote(r.Context(), id, payload.Content)
	if err != nil {
		writeError(w, h.logger, "PostNote", err, zap.String("patient_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(note))
}

// ListNotes 患者笔记（?requester_id=，?limit=，默认 50）
func (h *PatientHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()

	notes, err := h.patients.ListNotes(r.Context(), id, q.Get("requester_id"), parseInt(q.Get("limit"), 50))
	if err != nil {
		writeError(w, h.logger, "ListNotes", err, zap.String("patient_id", id))
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, Ok(notes))
}
