package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/repository"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/service"

	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// statusForError 错误 -> HTTP 状态码
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidSnapshot),
		errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrInvalidPairingCode):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError 写入失败响应；5xx 时记录日志（客户端据此展示可重试状态）
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error, fields ...zap.Field) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", append(fields, zap.Error(err))...)
	}
	writeJSON(w, status, Fail(err.Error()))
}
