package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "pulsoft", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, "pulsoft:patient:", cfg.Telemetry.KeyPrefix)
	assert.Equal(t, "pulsoft:telemetry:stream", cfg.Telemetry.Stream)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.Block)

	assert.Equal(t, 120.0, cfg.Alarm.Rules.HighCardio)
	assert.Equal(t, 70.0, cfg.Alarm.Rules.CombinedSudor)
	assert.Equal(t, 38.0, cfg.Alarm.Rules.CombinedTemperatura)
	assert.Equal(t, 100.0, cfg.Alarm.Rules.CombinedCardio)

	assert.Equal(t, 100.0, cfg.Alarm.Display.Cardio)
	assert.Equal(t, 4000.0, cfg.Alarm.Display.Sudor)
	assert.Equal(t, 15.0, cfg.Alarm.Display.Temperatura)

	assert.Equal(t, "patient", cfg.Alarm.RecipientMode)
	assert.Equal(t, "redis", cfg.Alarm.StateBackend)
	assert.Equal(t, 1, cfg.Push.RetryMaxAttempts)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_ADDR", "test-redis:6380")
	t.Setenv("ALARM_RULES_HIGH_CARDIO", "130")
	t.Setenv("ALARM_DISPLAY_SUDOR", "3500")
	t.Setenv("ALARM_RECIPIENT_MODE", "both")
	t.Setenv("PUSH_RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 130.0, cfg.Alarm.Rules.HighCardio)
	assert.Equal(t, 3500.0, cfg.Alarm.Display.Sudor)
	assert.Equal(t, "both", cfg.Alarm.RecipientMode)
	assert.Equal(t, 3, cfg.Push.RetryMaxAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidRecipientMode(t *testing.T) {
	os.Clearenv()
	t.Setenv("ALARM_RECIPIENT_MODE", "everyone")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ALARM_RECIPIENT_MODE")
}
