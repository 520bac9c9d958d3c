package config

import (
	"log"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/config"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
)

type Config struct {
	Server  config.ServerConfig  `yaml:"server"`
	DB      config.DBConfig      `yaml:"db"`
	MQ      config.MQConfig      `yaml:"mq"`
	Redis   config.RedisConfig   `yaml:"redis"`
	JWT     config.JWTConfig     `yaml:"jwt"`
	SMTP    config.SMTPConfig    `yaml:"smtp"`
	Storage config.StorageConfig `yaml:"storage"`
	Outbox  config.OutboxConfig  `yaml:"outbox"`
	Logging config.LoggingConfig `yaml:"logging"`
	OTEL    otel.Config          `yaml:"otel"`

	// StageCatalogPath 可选的 TOML 阶段目录文件
	StageCatalogPath string `yaml:"stage_catalog_path"`
}

func Load() *Config {
	// 使用统一配置中心
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideSMTPFromEnv(&cfg.SMTP)
	config.OverrideStorageFromEnv(&cfg.Storage)

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = config.StorageDriverPostgres
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.WorkerPort == "" {
		cfg.Server.WorkerPort = ":8081"
	}
	if cfg.MQ.Exchange == "" {
		cfg.MQ.Exchange = "jhub.events"
	}
	if cfg.MQ.RetryMax <= 0 {
		cfg.MQ.RetryMax = 3
	}

	return &cfg
}
