package config

import (
	"os"
	"strconv"
	"time"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	MaxConns int32  `yaml:"max_conns"`
	// ApplySchema 启动时执行 contracts/db/schema.sql（幂等）
	ApplySchema bool `yaml:"apply_schema"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
	// RetryMax 消费失败后最多重试次数，超过进入 DLQ
	RetryMax int `yaml:"retry_max"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        string   `yaml:"port"`
	WorkerPort  string   `yaml:"worker_port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// SMTPConfig 邮件发送配置；Host 为空时只记录日志不发送
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled SMTP 是否已配置
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// StorageConfig 存储驱动：postgres 或 memory
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// OutboxConfig outbox 派发配置
type OutboxConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
	BatchSize      int `yaml:"batch_size"`
	MaxRetries     int `yaml:"max_retries"`
}

// PollInterval 返回轮询间隔，未配置时为 1s
func (c OutboxConfig) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	setString(&cfg.Host, "DB_HOST")
	setInt(&cfg.Port, "DB_PORT")
	setString(&cfg.User, "DB_USER")
	setString(&cfg.Password, "DB_PASSWORD")
	setString(&cfg.Name, "DB_NAME")
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	setString(&cfg.URL, "MQ_URL")
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	setString(&cfg.Addr, "REDIS_ADDR")
	setString(&cfg.Password, "REDIS_PASSWORD")
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	setString(&cfg.Secret, "JWT_SECRET")
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	setString(&cfg.Port, "SERVER_PORT")
	setString(&cfg.WorkerPort, "WORKER_PORT")
}

// OverrideSMTPFromEnv 从环境变量覆盖SMTP配置
func OverrideSMTPFromEnv(cfg *SMTPConfig) {
	setString(&cfg.Host, "SMTP_HOST")
	setInt(&cfg.Port, "SMTP_PORT")
	setString(&cfg.Username, "SMTP_USERNAME")
	setString(&cfg.Password, "SMTP_PASSWORD")
	setString(&cfg.From, "SMTP_FROM")
}

// OverrideStorageFromEnv 从环境变量覆盖存储驱动
func OverrideStorageFromEnv(cfg *StorageConfig) {
	setString(&cfg.Driver, "STORAGE_DRIVER")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
