package consumer

import (
	"context"
	"fmt"
	"time"

	rediscommon "github.com/RecoveryCode-company/PulsoftMovil/common/redis"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/config"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/telemetry"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Submitter 按患者排队（由 tracker.Queues 实现）
type Submitter interface {
	Submit(ctx context.Context, snap models.PatientSnapshot) error
}

// StreamConsumer 遥测变更流消费者：XREADGROUP -> 按患者队列
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	queues      Submitter
	logger      *zap.Logger
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	queues Submitter,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		queues:      queues,
		logger:      logger,
	}
}

// Start 启动消费循环，ctx 取消时返回
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Telemetry.Stream
	group := c.config.Telemetry.ConsumerGroup

	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, group); err != nil {
		return err
	}

	if err := c.drainPending(ctx); err != nil {
		c.logger.Error("Failed to replay pending stream entries", zap.Error(err))
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", stream),
		zap.String("consumer_group", group),
		zap.String("consumer_name", c.config.Telemetry.ConsumerName),
	)

	backoffDuration := time.Second // 初始退避时间
	maxBackoff := 30 * time.Second // 最大退避时间

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stream consumer stopped")
			return nil
		default:
		}

		if _, err := c.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume telemetry stream",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

// drainPending 重新处理上次退出前已读取未确认的消息（tracker 按版本去重）
func (c *StreamConsumer) drainPending(ctx context.Context) error {
	lastID := "0"
	for {
		messages, err := rediscommon.ReadPendingFromStream(
			ctx,
			c.redisClient,
			c.config.Telemetry.Stream,
			c.config.Telemetry.ConsumerGroup,
			c.config.Telemetry.ConsumerName,
			lastID,
			c.config.Telemetry.BatchSize,
		)
		if err != nil {
			return fmt.Errorf("failed to read pending entries: %w", err)
		}
		if len(messages) == 0 {
			return nil
		}
		c.logger.Info("Replaying pending stream entries", zap.Int("count", len(messages)))
		if err := c.handleMessages(ctx, messages); err != nil {
			return err
		}
		lastID = messages[len(messages)-1].ID
	}
}

// consumeOnce 读取一批新消息，入队后确认，返回处理条数
func (c *StreamConsumer) consumeOnce(ctx context.Context) (int, error) {
	stream := c.config.Telemetry.Stream

	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		c.config.Telemetry.ConsumerGroup,
		c.config.Telemetry.ConsumerName,
		c.config.Telemetry.BatchSize,
		c.config.Telemetry.Block,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream %s: %w", stream, err)
	}
	if err := c.handleMessages(ctx, messages); err != nil {
		return 0, err
	}
	return len(messages), nil
}

func (c *StreamConsumer) handleMessages(ctx context.Context, messages []rediscommon.StreamMessage) error {
	stream := c.config.Telemetry.Stream
	group := c.config.Telemetry.ConsumerGroup

	for _, msg := range messages {
		snap, err := telemetry.ParseChange(msg.Values)
		if err != nil {
			// 无法解析的消息直接确认，避免反复投递
			c.logger.Error("Dropping malformed stream entry",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		} else if err := c.queues.Submit(ctx, *snap); err != nil {
			// 未确认的消息留在 PEL 中
			return fmt.Errorf("failed to enqueue %s: %w", msg.ID, err)
		}

		if err := rediscommon.Ack(ctx, c.redisClient, stream, group, msg.ID); err != nil {
			c.logger.Error("Failed to ack stream entry",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
