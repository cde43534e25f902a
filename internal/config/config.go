package config

import (
	"fmt"
	"time"

	commoncfg "github.com/RecoveryCode-company/PulsoftMovil/common/config"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config pulsoft 服务配置（pulsoft-alarm 与 pulsoft-data 共用）
type Config struct {
	Database commoncfg.DatabaseConfig `envconfig:"DB"`
	Redis    commoncfg.RedisConfig    `envconfig:"REDIS"`
	MQTT     commoncfg.MQTTConfig     `envconfig:"MQTT"`

	HTTP struct {
		Addr        string `envconfig:"ADDR" default:":8080"`
		MetricsAddr string `envconfig:"METRICS_ADDR" default:":9102"`
	} `envconfig:"HTTP"`

	// 遥测存储（Redis）
	Telemetry struct {
		KeyPrefix     string        `envconfig:"KEY_PREFIX" default:"pulsoft:patient:"`
		ChangesSuffix string        `envconfig:"CHANGES_SUFFIX" default:":changes"`
		Stream        string        `envconfig:"STREAM" default:"pulsoft:telemetry:stream"`
		StreamMaxLen  int64         `envconfig:"STREAM_MAXLEN" default:"10000"`
		ConsumerGroup string        `envconfig:"CONSUMER_GROUP" default:"pulsoft-alarm"`
		ConsumerName  string        `envconfig:"CONSUMER_NAME" default:"pulsoft-alarm-1"`
		BatchSize     int64         `envconfig:"BATCH_SIZE" default:"10"`
		Block         time.Duration `envconfig:"BLOCK" default:"5s"`
	} `envconfig:"TELEMETRY"`

	// 设备数据接入
	Ingest struct {
		Topic          string  `envconfig:"TOPIC" default:"pulsoft/+/vitals"`
		CardioMax      float64 `envconfig:"CARDIO_MAX" default:"300"`
		SudorMax       float64 `envconfig:"SUDOR_MAX" default:"10000"`
		TemperaturaMin float64 `envconfig:"TEMPERATURA_MIN" default:"-10"`
		TemperaturaMax float64 `envconfig:"TEMPERATURA_MAX" default:"60"`
	} `envconfig:"INGEST"`

	Alarm struct {
		// 推送报警阈值（服务端规则）
		Rules struct {
			HighCardio          float64 `envconfig:"HIGH_CARDIO" default:"120"`
			CombinedSudor       float64 `envconfig:"COMBINED_SUDOR" default:"70"`
			CombinedTemperatura float64 `envconfig:"COMBINED_TEMPERATURA" default:"38"`
			CombinedCardio      float64 `envconfig:"COMBINED_CARDIO" default:"100"`
		} `envconfig:"RULES"`

		// 客户端弹窗提示阈值（与推送阈值独立）
		Display struct {
			Cardio      float64 `envconfig:"CARDIO" default:"100"`
			Sudor       float64 `envconfig:"SUDOR" default:"4000"`
			Temperatura float64 `envconfig:"TEMPERATURA" default:"15"`
		} `envconfig:"DISPLAY"`

		RecipientMode  string        `envconfig:"RECIPIENT_MODE" default:"patient"` // patient | caregivers | both
		StateBackend   string        `envconfig:"STATE_BACKEND" default:"redis"`    // memory | redis
		StateKeyPrefix string        `envconfig:"STATE_KEY_PREFIX" default:"pulsoft:episode:"`
		QueueSize      int           `envconfig:"QUEUE_SIZE" default:"64"`
		IdleTimeout    time.Duration `envconfig:"IDLE_TIMEOUT" default:"5m"`
	} `envconfig:"ALARM"`

	// FCM 推送
	Push struct {
		Endpoint             string        `envconfig:"ENDPOINT" default:"https://fcm.googleapis.com"`
		ProjectID            string        `envconfig:"PROJECT_ID" default:""`
		AccessToken          string        `envconfig:"ACCESS_TOKEN" default:""`
		Timeout              time.Duration `envconfig:"TIMEOUT" default:"10s"`
		RetryMaxAttempts     int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"1"`
		RetryInitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"500ms"`
		RetryMaxInterval     time.Duration `envconfig:"RETRY_MAX_INTERVAL" default:"5s"`
	} `envconfig:"PUSH"`

	Log struct {
		Level  string `envconfig:"LEVEL" default:"info"`
		Format string `envconfig:"FORMAT" default:"json"`
		File   string `envconfig:"FILE" default:""`
	} `envconfig:"LOG"`
}

// Load 加载配置（先读取 .env，再由环境变量覆盖默认值）
func Load() (*Config, error) {
	// .env 不存在时直接使用环境变量
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch c.Alarm.RecipientMode {
	case "patient", "caregivers", "both":
	default:
		return fmt.Errorf("invalid ALARM_RECIPIENT_MODE: %q", c.Alarm.RecipientMode)
	}
	switch c.Alarm.StateBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid ALARM_STATE_BACKEND: %q", c.Alarm.StateBackend)
	}
	if c.Alarm.QueueSize <= 0 {
		return fmt.Errorf("ALARM_QUEUE_SIZE must be > 0")
	}
	if c.Push.RetryMaxAttempts < 1 {
		return fmt.Errorf("PUSH_RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if c.Ingest.TemperaturaMin >= c.Ingest.TemperaturaMax {
		return fmt.Errorf("INGEST_TEMPERATURA_MIN must be below INGEST_TEMPERATURA_MAX")
	}
	return nil
}
