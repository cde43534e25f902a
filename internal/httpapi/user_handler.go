package httpapi

import (
	"context"
	"net/http"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// UserAPI 用户登记（由 service.PatientService 实现）
type UserAPI interface {
	RegisterUser(ctx context.Context, u *models.User) error
	RegisterToken(ctx context.Context, userID, token string) error
}

// UserHandler 用户 Handler
type UserHandler struct {
	users  UserAPI
	logger *zap.Logger
}

func NewUserHandler(users UserAPI, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// PutUser 登记用户: {"user_type":"patient","display_name":"..."}
func (h *UserHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload struct {
		UserType    models.UserType `json:"user_type"`
		DisplayName string          `json:"display_name"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	u := &models.User{UserID: id, UserType: payload.UserType, DisplayName: payload.DisplayName}
	if err := h.users.RegisterUser(r.Context(), u); err != nil {
		writeError(w, h.logger, "PutUser", err, zap.String("user_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(u))
}

// PutToken 写入或刷新推送 token: {"token":"..."}
func (h *UserHandler) PutToken(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload struct {
		Token string `json:"token"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	if err := h.users.RegisterToken(r.Context(), id, payload.Token); err != nil {
		writeError(w, h.logger, "PutToken", err, zap.String("user_id", id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"user_id": id}))
}
