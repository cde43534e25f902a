package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMessage() models.PushMessage {
	return models.PushMessage{
		Token: "device-token-123456",
		Notification: models.Notification{
			Title: "¡Alerta Cardiovascular!",
			Body:  "El ritmo cardiaco ha superado el límite.",
		},
	}
}

func TestFCMSender_Send_Success(t *testing.T) {
	var got fcmRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/pulsoft-test/messages:send", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"projects/pulsoft-test/messages/1"}`))
	}))
	defer server.Close()

	sender := NewFCMSender(server.URL, "pulsoft-test", "secret", time.Second, zap.NewNop())
	err := sender.Send(context.Background(), testMessage())

	require.NoError(t, err)
	assert.Equal(t, "device-token-123456", got.Message.Token)
	assert.Equal(t, "¡Alerta Cardiovascular!", got.Message.Notification.Title)
	assert.Equal(t, "El ritmo cardiaco ha superado el límite.", got.Message.Notification.Body)
}

func TestFCMSender_Send_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`))
	}))
	defer server.Close()

	sender := NewFCMSender(server.URL, "pulsoft-test", "", time.Second, zap.NewNop())
	err := sender.Send(context.Background(), testMessage())

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusNotFound, de.StatusCode)
	assert.Equal(t, "NOT_FOUND", de.Status)
	assert.False(t, de.Retryable())
}

func TestRetryingSender_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"ok"}`))
	}))
	defer server.Close()

	sender := NewRetryingSender(
		NewFCMSender(server.URL, "pulsoft-test", "", time.Second, zap.NewNop()),
		RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		zap.NewNop(),
	)

	require.NoError(t, sender.Send(context.Background(), testMessage()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryingSender_StopsAtMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewRetryingSender(
		NewFCMSender(server.URL, "pulsoft-test", "", time.Second, zap.NewNop()),
		RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		zap.NewNop(),
	)

	assert.Error(t, sender.Send(context.Background(), testMessage()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRetryingSender_DoesNotRetryPermanentFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewRetryingSender(
		NewFCMSender(server.URL, "pulsoft-test", "", time.Second, zap.NewNop()),
		RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		zap.NewNop(),
	)

	err := sender.Send(context.Background(), testMessage())
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusBadRequest, de.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", maskToken("abc"))
	assert.Equal(t, "***123456", maskToken("device-token-123456"))
}
