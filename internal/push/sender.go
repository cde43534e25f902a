package push

import (
	"context"
	"fmt"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/config"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"go.uber.org/zap"
)

// Sender 推送发送方
type Sender interface {
	Send(ctx context.Context, msg models.PushMessage) error
}

// DeliveryError 推送服务返回的错误
type DeliveryError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push delivery failed: %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Retryable 5xx 与 429 可重试，其余 4xx（如 token 失效）不可重试
func (e *DeliveryError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// NewSenderFromConfig 按配置创建发送方
//
// 未配置 PUSH_PROJECT_ID 时只记录日志不发送；
// PUSH_RETRY_MAX_ATTEMPTS > 1 时包一层有限次数的指数退避重试。
func NewSenderFromConfig(cfg *config.Config, logger *zap.Logger) Sender {
	var sender Sender
	if cfg.Push.ProjectID == "" {
		logger.Warn("PUSH_PROJECT_ID not set, notifications will only be logged")
		sender = NewLogSender(logger)
	} else {
		sender = NewFCMSender(cfg.Push.Endpoint, cfg.Push.ProjectID, cfg.Push.AccessToken, cfg.Push.Timeout, logger)
	}

	if cfg.Push.RetryMaxAttempts > 1 {
		sender = NewRetryingSender(sender, RetryPolicy{
			MaxAttempts:     cfg.Push.RetryMaxAttempts,
			InitialInterval: cfg.Push.RetryInitialInterval,
			MaxInterval:     cfg.Push.RetryMaxInterval,
		}, logger)
	}
	return sender
}

// LogSender 只记录日志
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender 创建日志发送方
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg models.PushMessage) error {
	s.logger.Info("Push notification (dry run)",
		zap.String("token", maskToken(msg.Token)),
		zap.String("title", msg.Notification.Title),
		zap.String("body", msg.Notification.Body),
	)
	return nil
}

// maskToken 日志中只保留 token 末尾几位
func maskToken(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return "***" + token[len(token)-6:]
}
