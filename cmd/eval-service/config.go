package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/common/mq"
	"ojcore/internal/eval/service"
	"ojcore/internal/events"
	"ojcore/pkg/utils/logger"
)

const defaultTerminalTopic = "eval.status.terminal"

// timeDuration wraps time.Duration for YAML unmarshalling.
type timeDuration time.Duration

// UnmarshalYAML supports duration strings like "5s" or "2m".
func (d *timeDuration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration failed: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration failed: %w", err)
	}
	*d = timeDuration(parsed)
	return nil
}

func (d timeDuration) std() time.Duration {
	return time.Duration(d)
}

// JudgeConfig holds judge invocation settings.
type JudgeConfig struct {
	Binary        string       `yaml:"binary"`
	SubmissionDir string       `yaml:"submissionDir"`
	TaskDir       string       `yaml:"taskDir"`
	Timeout       timeDuration `yaml:"timeout"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize int `yaml:"poolSize"`
}

// EventsConfig holds status distributor settings.
type EventsConfig struct {
	HistoryWindow timeDuration `yaml:"historyWindow"`
}

// SweepConfig holds pending sweep settings.
type SweepConfig struct {
	Interval timeDuration `yaml:"interval"`
}

// KafkaConfig holds the optional terminal-event publisher settings.
type KafkaConfig struct {
	Enabled      bool         `yaml:"enabled"`
	Brokers      []string     `yaml:"brokers"`
	ClientID     string       `yaml:"clientID"`
	Topic        string       `yaml:"topic"`
	BatchSize    int          `yaml:"batchSize"`
	BatchTimeout timeDuration `yaml:"batchTimeout"`
	DialTimeout  timeDuration `yaml:"dialTimeout"`
	WriteTimeout timeDuration `yaml:"writeTimeout"`
}

func (c KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      c.Brokers,
		ClientID:     c.ClientID,
		BatchSize:    c.BatchSize,
		BatchTimeout: c.BatchTimeout.std(),
		DialTimeout:  c.DialTimeout.std(),
		WriteTimeout: c.WriteTimeout.std(),
	}
}

// AppConfig holds eval-service config.
type AppConfig struct {
	Logger   logger.Config     `yaml:"logger"`
	Database db.MySQLConfig    `yaml:"database"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Judge    JudgeConfig       `yaml:"judge"`
	Worker   WorkerConfig      `yaml:"worker"`
	Events   EventsConfig      `yaml:"events"`
	Sweep    SweepConfig       `yaml:"sweep"`
	Kafka    KafkaConfig       `yaml:"kafka"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Judge.Binary == "" {
		return nil, fmt.Errorf("judge binary is required")
	}
	if cfg.Judge.SubmissionDir == "" {
		return nil, fmt.Errorf("judge submissionDir is required")
	}
	if cfg.Judge.TaskDir == "" {
		return nil, fmt.Errorf("judge taskDir is required")
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = service.DefaultWorkers
	}
	if cfg.Events.HistoryWindow <= 0 {
		cfg.Events.HistoryWindow = timeDuration(events.DefaultHistoryWindow)
	}
	if cfg.Sweep.Interval <= 0 {
		cfg.Sweep.Interval = timeDuration(service.DefaultSweepInterval)
	}
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if cfg.Kafka.Topic == "" {
			cfg.Kafka.Topic = defaultTerminalTopic
		}
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}
