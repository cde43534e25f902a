package push

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxAttempts     int // 总尝试次数（含第一次）
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryingSender 有限次数指数退避重试
type RetryingSender struct {
	next   Sender
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetryingSender 创建重试发送方
func NewRetryingSender(next Sender, policy RetryPolicy, logger *zap.Logger) *RetryingSender {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 500 * time.Millisecond
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = 5 * time.Second
	}
	return &RetryingSender{next: next, policy: policy, logger: logger}
}

func (s *RetryingSender) Send(ctx context.Context, msg models.PushMessage) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.policy.InitialInterval
	exp.Multiplier = 2
	exp.MaxInterval = s.policy.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.policy.MaxAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := s.next.Send(ctx, msg)
		if err == nil {
			return nil
		}

		var de *DeliveryError
		if errors.As(err, &de) && !de.Retryable() {
			return backoff.Permanent(err)
		}

		s.logger.Warn("Push delivery attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.policy.MaxAttempts),
			zap.Error(err),
		)
		return err
	}, b)
}
