package httpapi

import (
	"context"
	"net/http"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/service"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PairingAPI 配对（由 service.PairingService 实现）
type PairingAPI interface {
	IssueCode(ctx context.Context, patientID string) (string, error)
	Redeem(ctx context.Context, caregiverID, code string) (*service.RedeemResult, error)
}

// PairingHandler 配对 Handler
type PairingHandler struct {
	pairing PairingAPI
	logger  *zap.Logger
}

func NewPairingHandler(pairing PairingAPI, logger *zap.Logger) *PairingHandler {
	return &PairingHandler{pairing: pairing, logger: logger}
}

// IssueCode 为患者生成配对码
func (h *PairingHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	code, err := h.pairing.IssueCode(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "IssueCode", err, zap.String("patient_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"pairing_code": code}))
}

// Redeem 看护人兑换配对码: {"code":"AB12CD"}
// not_found 也以 code=2000 返回，由 result.outcome 区分
func (h *PairingHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload struct {
		Code string `json:"code"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	res, err := h.pairing.Redeem(r.Context(), id, payload.Code)
	if err != nil {
		writeError(w, h.logger, "Redeem", err, zap.String("caregiver_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}
