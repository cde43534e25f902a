package push

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// fcmRequest FCM HTTP v1 请求体
type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string              `json:"token"`
	Notification models.Notification `json:"notification"`
}

// fcmResponse FCM HTTP v1 响应
type fcmResponse struct {
	Name string `json:"name"`
}

type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// FCMSender Firebase Cloud Messaging HTTP v1 客户端（不做重试）
type FCMSender struct {
	httpClient *resty.Client
	projectID  string
	logger     *zap.Logger
}

// NewFCMSender 创建 FCM 客户端
func NewFCMSender(endpoint, projectID, accessToken string, timeout time.Duration, logger *zap.Logger) *FCMSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if accessToken != "" {
		client.SetAuthToken(accessToken)
	}

	return &FCMSender{
		httpClient: client,
		projectID:  projectID,
		logger:     logger,
	}
}

// Send 发送一条推送
func (s *FCMSender) Send(ctx context.Context, msg models.PushMessage) error {
	request := fcmRequest{
		Message: fcmMessage{
			Token:        msg.Token,
			Notification: msg.Notification,
		},
	}

	var response fcmResponse
	var failure fcmErrorResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		SetError(&failure).
		SetPathParam("project", s.projectID).
		Post("/v1/projects/{project}/messages:send")

	if err != nil {
		return fmt.Errorf("failed to call FCM: %w", err)
	}

	if resp.IsError() {
		return &DeliveryError{
			StatusCode: resp.StatusCode(),
			Status:     failure.Error.Status,
			Message:    failure.Error.Message,
		}
	}

	s.logger.Debug("Push notification sent",
		zap.String("token", maskToken(msg.Token)),
		zap.String("message_name", response.Name),
	)
	return nil
}
