package config

import (
	"fmt"
)

// DatabaseConfig 数据库配置（envconfig 前缀由上层 Config 决定，如 DB_HOST）
type DatabaseConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" default:"postgres"`
	Password string `envconfig:"PASSWORD" default:"postgres"`
	Database string `envconfig:"NAME" default:"pulsoft"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
	MaxConns int    `envconfig:"MAX_CONNS" default:"10"`
	MaxIdle  int    `envconfig:"MAX_IDLE" default:"5"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD" default:""`
	DB       int    `envconfig:"DB" default:"0"`
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Enabled  bool   `envconfig:"ENABLED" default:"true"`
	Broker   string `envconfig:"BROKER" default:"tcp://localhost:1883"`
	ClientID string `envconfig:"CLIENT_ID" default:"pulsoft-alarm"`
	Username string `envconfig:"USERNAME" default:""`
	Password string `envconfig:"PASSWORD" default:""`
	QoS      byte   `envconfig:"QOS" default:"1"`
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}
