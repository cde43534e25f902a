package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqttcommon "github.com/RecoveryCode-company/PulsoftMovil/common/mqtt"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/config"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"go.uber.org/zap"
)

const ingestTimeout = 10 * time.Second

// Ingester 写入遥测存储（由 service.PatientService 实现）
type Ingester interface {
	Ingest(ctx context.Context, patientID string, reading models.VitalsReading, source string) (*models.PatientSnapshot, error)
}

// MQTTSubscriber MQTT 订阅（由 common/mqtt.Client 实现）
type MQTTSubscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer 设备数据消费者：pulsoft/{patient_id}/vitals -> 遥测存储
type MQTTConsumer struct {
	config     *config.Config
	mqttClient MQTTSubscriber
	ingester   Ingester
	logger     *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient MQTTSubscriber,
	ingester Ingester,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		ingester:   ingester,
		logger:     logger,
	}
}

// Start 订阅设备主题
func (c *MQTTConsumer) Start() error {
	if err := c.mqttClient.Subscribe(c.config.Ingest.Topic, c.config.MQTT.QoS, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to vitals topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.Ingest.Topic),
	)
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() {
	if err := c.mqttClient.Unsubscribe(c.config.Ingest.Topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
}

// HandleMessage 处理一条设备消息
func (c *MQTTConsumer) HandleMessage(topic string, payload []byte) error {
	// 主题格式: pulsoft/{patient_id}/vitals
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	patientID := parts[1]

	var reading models.VitalsReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return fmt.Errorf("failed to unmarshal vitals payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	snap, err := c.ingester.Ingest(ctx, patientID, reading, "mqtt")
	if err != nil {
		return fmt.Errorf("failed to ingest vitals for %s: %w", patientID, err)
	}

	c.logger.Debug("Ingested vitals",
		zap.String("patient_id", patientID),
		zap.Int64("version", snap.Version),
	)
	return nil
}
