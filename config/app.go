// Package config 提供应用配置加载与 Node 注册表。
//
// 配置按以下顺序叠加，后者覆盖前者：
//  1. Default() 中的默认值
//  2. YAML 配置文件（可选）
//  3. REELKIT_ 前缀的环境变量，层级用双下划线分隔：
//     REELKIT_RECOMMEND__DEFAULT_LIMIT=30 -> recommend.default_limit
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/reelkit/catalog"
	"github.com/rushteam/reelkit/feedback"
	"github.com/rushteam/reelkit/pkg/logging"
	"github.com/rushteam/reelkit/recommend"
)

// EnvPrefix 是环境变量前缀。
const EnvPrefix = "REELKIT_"

// Config 是 reelkit 服务的完整配置。
type Config struct {
	Log       logging.Config   `koanf:"log"`
	Store     StoreConfig      `koanf:"store"`
	Redis     RedisConfig      `koanf:"redis"`
	Badger    BadgerConfig     `koanf:"badger"`
	Postgres  PostgresConfig   `koanf:"postgres"`
	Catalog   CatalogConfig    `koanf:"catalog"`
	Recommend recommend.Config `koanf:"recommend"`
	Feedback  FeedbackConfig   `koanf:"feedback"`
	Server    ServerConfig     `koanf:"server"`

	// Pipeline 是重算链路的 YAML/JSON 定义文件，为空时使用内置链路
	Pipeline string `koanf:"pipeline"`
}

// StoreConfig 选择存储后端。
type StoreConfig struct {
	Backend           string  `koanf:"backend" validate:"oneof=memory redis badger"`
	Movies            string  `koanf:"movies" validate:"oneof=kv postgres"`
	RecommendationKey string  `koanf:"recommendation_key"`
	DismissedKey      string  `koanf:"dismissed_key"`
	DismissedCapacity uint    `koanf:"dismissed_capacity"`
	DismissedFPRate   float64 `koanf:"dismissed_fp_rate" validate:"gte=0,lt=1"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	PoolSize int    `koanf:"pool_size" validate:"gte=0"`
}

type BadgerConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

type PostgresConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"gte=0"`
}

// CatalogConfig 选择影片目录：tmdb（HTTP）或 file（YAML 快照）。
type CatalogConfig struct {
	Type         string                `koanf:"type" validate:"oneof=tmdb file"`
	APIKey       string                `koanf:"api_key"`
	BearerToken  string                `koanf:"bearer_token"`
	BaseURL      string                `koanf:"base_url" validate:"omitempty,url"`
	Language     string                `koanf:"language"`
	Pages        int                   `koanf:"pages" validate:"gte=0,lte=20"`
	Timeout      time.Duration         `koanf:"timeout"`
	RateLimit    float64               `koanf:"rate_limit" validate:"gte=0"`
	Burst        int                   `koanf:"burst" validate:"gte=0"`
	Breaker      catalog.BreakerConfig `koanf:"breaker"`
	SnapshotPath string                `koanf:"snapshot_path"`
}

// FeedbackConfig 选择反馈收集器：none / memory / kafka。
type FeedbackConfig struct {
	Type  string               `koanf:"type" validate:"oneof=none memory kafka"`
	Kafka feedback.KafkaConfig `koanf:"kafka"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Default 返回默认配置：内存存储、TMDB 目录、内置链路。
func Default() *Config {
	return &Config{
		Log: logging.Config{Level: "info", Format: "json"},
		Store: StoreConfig{
			Backend:         "memory",
			Movies:          "kv",
			DismissedFPRate: 0.001,
		},
		Redis:    RedisConfig{Addr: "127.0.0.1:6379", PoolSize: 10},
		Badger:   BadgerConfig{Path: "data/badger"},
		Postgres: PostgresConfig{MaxOpenConns: 10},
		Catalog: CatalogConfig{
			Type:      "tmdb",
			BaseURL:   catalog.DefaultBaseURL,
			Language:  "en-US",
			Pages:     1,
			Timeout:   10 * time.Second,
			RateLimit: 40,
			Burst:     10,
			Breaker:   catalog.BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second},
		},
		Recommend: recommend.DefaultConfig(),
		Feedback: FeedbackConfig{
			Type:  "none",
			Kafka: feedback.KafkaConfig{Topic: "reelkit.feedback", BatchSize: 100, FlushInterval: time.Second},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// Load 加载配置：默认值 < path 指向的 YAML（为空则跳过）< 环境变量，并校验。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}
	splitList(k, "feedback.kafka.brokers")

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey: REELKIT_CATALOG__API_KEY -> catalog.api_key
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// splitList 把环境变量传入的逗号分隔字符串转为列表。
func splitList(k *koanf.Koanf, path string) {
	if v, ok := k.Get(path).(string); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		_ = k.Set(path, out)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验字段取值与跨字段依赖。
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var errs []error
	switch c.Store.Backend {
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for store.backend=redis"))
		}
	case "badger":
		if c.Badger.Path == "" && !c.Badger.InMemory {
			errs = append(errs, errors.New("badger.path is required unless badger.in_memory"))
		}
	}
	if c.Store.Movies == "postgres" && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required for store.movies=postgres"))
	}
	switch c.Catalog.Type {
	case "tmdb":
		if c.Catalog.APIKey == "" && c.Catalog.BearerToken == "" {
			errs = append(errs, errors.New("catalog.api_key or catalog.bearer_token is required for catalog.type=tmdb"))
		}
	case "file":
		if c.Catalog.SnapshotPath == "" {
			errs = append(errs, errors.New("catalog.snapshot_path is required for catalog.type=file"))
		}
	}
	if c.Feedback.Type == "kafka" && (len(c.Feedback.Kafka.Brokers) == 0 || c.Feedback.Kafka.Topic == "") {
		errs = append(errs, errors.New("feedback.kafka.brokers and feedback.kafka.topic are required for feedback.type=kafka"))
	}
	if c.Pipeline != "" {
		if _, err := os.Stat(c.Pipeline); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
