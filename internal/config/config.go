package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix  = "PIXELLAB_"
	EnvConfig  = EnvPrefix + "CONFIG"
	defaultMiB = 1 << 20
)

type Config struct {
	API      APIConfig      `koanf:"api"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Queue    QueueConfig    `koanf:"queue"`
	Worker   WorkerConfig   `koanf:"worker"`
	Storage  StorageConfig  `koanf:"storage"`
	Database DatabaseConfig `koanf:"database"`
	Tracing  TracingConfig  `koanf:"tracing"`
}

type APIConfig struct {
	Addr           string        `koanf:"addr"`
	MaxUploadBytes int64         `koanf:"max_upload_bytes"`
	CORSOrigins    string        `koanf:"cors_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"`
}

// AllowedOrigins splits the comma-separated origin list. An empty list
// allows every origin.
func (a APIConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(a.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

type PipelineConfig struct {
	JPEGQuality    int `koanf:"jpeg_quality"`
	Parallelism    int `koanf:"parallelism"`
	CatalogVersion int `koanf:"catalog_version"`
}

type QueueConfig struct {
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	Name          string `koanf:"name"`
}

// Enabled reports whether usage records are published to the queue.
func (q QueueConfig) Enabled() bool {
	return strings.TrimSpace(q.RedisAddr) != ""
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency int    `koanf:"concurrency"`
	MetricsAddr string `koanf:"metrics_addr"`
}

type StorageConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`
}

func (s StorageConfig) Enabled() bool {
	return strings.TrimSpace(s.Endpoint) != ""
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

type TracingConfig struct {
	Exporter     string `koanf:"exporter"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
	ServiceName  string `koanf:"service_name"`
}

// Load reads the YAML file named by PIXELLAB_CONFIG, if any, then overlays
// PIXELLAB_* environment variables ("__" separates sections, so
// PIXELLAB_API__ADDR sets api.addr). Unset values take defaults.
func Load() (Config, error) {
	return LoadFile(os.Getenv(EnvConfig))
}

func LoadFile(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("stat config file %s: %w", path, err)
		} else if err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func applyDefaults(c *Config) {
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.API.MaxUploadBytes == 0 {
		c.API.MaxUploadBytes = 20 * defaultMiB
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 60 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}
	if c.Pipeline.JPEGQuality == 0 {
		c.Pipeline.JPEGQuality = 95
	}
	if c.Pipeline.Parallelism == 0 {
		c.Pipeline.Parallelism = runtime.NumCPU()
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "default"
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = max(2, runtime.NumCPU())
	}
	if c.Worker.MetricsAddr == "" {
		c.Worker.MetricsAddr = ":9091"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "pixellab"
	}
}

func (c Config) validate() error {
	if c.API.MaxUploadBytes < 0 {
		return fmt.Errorf("api.max_upload_bytes must be positive, got %d", c.API.MaxUploadBytes)
	}
	if c.Pipeline.JPEGQuality < 1 || c.Pipeline.JPEGQuality > 100 {
		return fmt.Errorf("pipeline.jpeg_quality must be within 1..100, got %d", c.Pipeline.JPEGQuality)
	}
	if c.Pipeline.Parallelism < 0 {
		return fmt.Errorf("pipeline.parallelism must not be negative, got %d", c.Pipeline.Parallelism)
	}
	if c.Pipeline.CatalogVersion < 0 || c.Pipeline.CatalogVersion > 2 {
		return fmt.Errorf("pipeline.catalog_version must be 1 or 2, got %d", c.Pipeline.CatalogVersion)
	}
	if c.Storage.Enabled() && strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage.bucket is required when storage.endpoint is set")
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be none, stdout or otlp, got %s", c.Tracing.Exporter)
	}
	return nil
}
