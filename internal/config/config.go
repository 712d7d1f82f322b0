// Package config loads settings from an optional YAML file, a .env file and
// the environment, in that order of increasing precedence.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dsmilne3/ai-video-analyzer/internal/evaluation"
	"github.com/dsmilne3/ai-video-analyzer/internal/storage"
	"github.com/dsmilne3/ai-video-analyzer/internal/transcribe"
)

type Config struct {
	Scoring       ScoringConfig       `yaml:"scoring"`
	Evaluation    evaluation.Limits   `yaml:"evaluation"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Storage       StorageConfig       `yaml:"storage"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	HTTP          HTTPConfig          `yaml:"http"`
	Rubrics       RubricsConfig       `yaml:"rubrics"`
	Results       ResultsConfig       `yaml:"results"`
	Log           LogConfig           `yaml:"log"`
}

type ScoringConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type TranscriptionConfig struct {
	// Method is "docker" or "http".
	Method string                  `yaml:"method"`
	URL    string                  `yaml:"url"`
	Docker transcribe.DockerConfig `yaml:"docker"`
}

type StorageConfig struct {
	// Backend is "fs" or "s3".
	Backend string           `yaml:"backend"`
	Dir     string           `yaml:"dir"`
	S3      storage.S3Config `yaml:"s3"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	APIToken       string   `yaml:"api_token"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
}

type RubricsConfig struct {
	Prefix string `yaml:"prefix"`
}

type ResultsConfig struct {
	Prefix string `yaml:"prefix"`
	// Format is "json" or "txt".
	Format string `yaml:"format"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Provider: "openai",
			Timeout:  60 * time.Second,
		},
		Evaluation: evaluation.DefaultLimits(),
		Transcription: TranscriptionConfig{
			Method: "http",
			URL:    "http://localhost:9000",
			Docker: transcribe.DockerConfig{
				Image:    "demoeval/whisper:latest",
				Model:    "base",
				MemoryMB: 4096,
				CPUs:     2,
				Timeout:  15 * time.Minute,
			},
		},
		Storage: StorageConfig{
			Backend: "fs",
			Dir:     "./data",
			S3:      storage.S3Config{Region: "us-east-1"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "./data/demoeval.db",
		},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		HTTP:    HTTPConfig{Addr: ":8000", MaxUploadMB: 200},
		Rubrics: RubricsConfig{Prefix: "rubrics/"},
		Results: ResultsConfig{Prefix: "results/", Format: "json"},
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path (or the first config.yaml found) over the defaults, then
// applies .env and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env never overrides variables already set
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Evaluation.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	for _, p := range []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".demoeval", "config.yaml"),
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	c.Scoring.Provider = envOr("LLM_PROVIDER", c.Scoring.Provider)
	c.Scoring.Model = envOr("LLM_MODEL", c.Scoring.Model)
	c.Scoring.BaseURL = envOr("LLM_BASE_URL", c.Scoring.BaseURL)
	switch c.Scoring.Provider {
	case "anthropic":
		c.Scoring.APIKey = envOr("ANTHROPIC_API_KEY", c.Scoring.APIKey)
	default:
		c.Scoring.APIKey = envOr("OPENAI_API_KEY", c.Scoring.APIKey)
	}
	c.Scoring.Timeout = envDuration("LLM_TIMEOUT", c.Scoring.Timeout)

	c.Transcription.Method = envOr("TRANSCRIPTION_METHOD", c.Transcription.Method)
	c.Transcription.URL = envOr("TRANSCRIPTION_URL", c.Transcription.URL)
	c.Transcription.Docker.Image = envOr("WHISPER_IMAGE", c.Transcription.Docker.Image)
	c.Transcription.Docker.Model = envOr("WHISPER_MODEL", c.Transcription.Docker.Model)

	c.Storage.Backend = envOr("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Dir = envOr("STORAGE_DIR", c.Storage.Dir)
	c.Storage.S3.Endpoint = envOr("MINIO_ENDPOINT", c.Storage.S3.Endpoint)
	c.Storage.S3.Bucket = envOr("MINIO_BUCKET", c.Storage.S3.Bucket)
	c.Storage.S3.AccessKey = envOr("MINIO_ACCESS_KEY", c.Storage.S3.AccessKey)
	c.Storage.S3.SecretKey = envOr("MINIO_SECRET_KEY", c.Storage.S3.SecretKey)

	c.Database.Driver = envOr("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = envOr("DATABASE_URL", c.Database.DSN)

	c.Redis.Addr = envOr("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envOr("REDIS_PASSWORD", c.Redis.Password)

	c.HTTP.Addr = envOr("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.APIToken = envOr("API_TOKEN", c.HTTP.APIToken)
	c.HTTP.JWTSecret = envOr("JWT_SECRET", c.HTTP.JWTSecret)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.HTTP.AllowedOrigins = strings.Split(v, ",")
	}

	c.Log.Level = envOr("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("LOG_FORMAT", c.Log.Format)
}

func envOr(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

type ctxKey struct{}

func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the config stored by WithConfig, or the defaults.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}
	return Default()
}
