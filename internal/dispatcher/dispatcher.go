package dispatcher

import (
	"context"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/metrics"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/push"

	"go.uber.org/zap"
)

// BuildNotification 按分类生成推送内容
func BuildNotification(class models.AlertClassification) (models.Notification, bool) {
	switch class {
	case models.ClassificationHighCardio:
		return models.Notification{
			Title: "¡Alerta Cardiovascular!",
			Body:  "El ritmo cardiaco ha superado el límite.",
		}, true
	case models.ClassificationCombined:
		return models.Notification{
			Title: "¡Síntomas de ansiedad!",
			Body:  "Sudor, temperatura y ritmo cardíaco elevados detectados.",
		}, true
	default:
		return models.Notification{}, false
	}
}

// Result 一次分发的结果
type Result struct {
	Delivered int  `json:"delivered"`
	Failed    int  `json:"failed"`
	Skipped   bool `json:"skipped"` // 没有可用 token
}

// Dispatcher 报警推送分发（尽力而为，错误不向上传播）
type Dispatcher struct {
	resolver RecipientResolver
	sender   push.Sender
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewDispatcher 创建分发器
func NewDispatcher(resolver RecipientResolver, sender push.Sender, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		sender:   sender,
		metrics:  m,
		logger:   logger,
	}
}

// Dispatch 对一次报警周期打开事件发送推送，每个 token 最多发送一次
func (d *Dispatcher) Dispatch(ctx context.Context, patientID string, class models.AlertClassification) Result {
	var result Result

	notification, ok := BuildNotification(class)
	if !ok {
		d.logger.Warn("No notification for classification",
			zap.String("patient_id", patientID),
			zap.String("classification", string(class)),
		)
		result.Skipped = true
		return result
	}

	tokens, err := d.resolver.Resolve(ctx, patientID)
	if err != nil {
		d.logger.Error("Failed to resolve recipients",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		d.metrics.Notification("failed")
		result.Failed = 1
		return result
	}

	if len(tokens) == 0 {
		d.logger.Info("No delivery token registered, skipping notification",
			zap.String("patient_id", patientID),
		)
		d.metrics.Notification("skipped")
		result.Skipped = true
		return result
	}

	for _, token := range tokens {
		msg := models.PushMessage{Token: token, Notification: notification}
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Error("Failed to send notification",
				zap.String("patient_id", patientID),
				zap.String("classification", string(class)),
				zap.Error(err),
			)
			d.metrics.Notification("failed")
			result.Failed++
			// 继续发送其他 token，不中断
			continue
		}
		d.metrics.Notification("sent")
		result.Delivered++
	}

	d.logger.Info("Notification dispatched",
		zap.String("patient_id", patientID),
		zap.String("classification", string(class)),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
	)
	return result
}
