// Package config loads settings from an optional YAML file with FNBOX_*
// environment variables taking precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"fnbox/sandbox"
)

type Config struct {
	Port           string `yaml:"port"`
	BindAddr       string `yaml:"bind_addr"`
	DBDriver       string `yaml:"db_driver"`
	DBDSN          string `yaml:"db_dsn"`
	UploadDir      string `yaml:"upload_dir"`
	PurgeSchedule  string `yaml:"purge_schedule"`
	AllowedOrigins string `yaml:"allowed_origins"`
	JWTSecret      string `yaml:"jwt_secret"`
	LogFile        string `yaml:"log_file"`

	ExecTimeout    Duration `yaml:"exec_timeout"`
	MemoryLimitMB  int64    `yaml:"memory_limit_mb"`
	SampleInterval Duration `yaml:"sample_interval"`

	S3 S3Config `yaml:"s3"`
}

// Duration lets YAML carry durations as strings like "5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func defaults() *Config {
	return &Config{
		Port:           "8700",
		BindAddr:       "127.0.0.1",
		DBDriver:       "sqlite",
		DBDSN:          "fnbox.db",
		UploadDir:      "uploads",
		PurgeSchedule:  "* * * * *",
		ExecTimeout:    Duration(sandbox.DefaultTimeout),
		MemoryLimitMB:  sandbox.DefaultMemoryLimit >> 20,
		SampleInterval: Duration(sandbox.DefaultSampleInterval),
		S3: S3Config{
			Region: "auto",
			UseSSL: true,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// if it is non-empty, then the environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Port = envOr("FNBOX_PORT", cfg.Port)
	cfg.BindAddr = envOr("FNBOX_BIND_ADDR", cfg.BindAddr)
	cfg.DBDriver = envOr("FNBOX_DB_DRIVER", cfg.DBDriver)
	cfg.DBDSN = envOr("FNBOX_DB_DSN", cfg.DBDSN)
	cfg.UploadDir = envOr("FNBOX_UPLOAD_DIR", cfg.UploadDir)
	cfg.PurgeSchedule = envOr("FNBOX_PURGE_SCHEDULE", cfg.PurgeSchedule)
	cfg.AllowedOrigins = envOr("FNBOX_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.JWTSecret = envOr("FNBOX_JWT_SECRET", cfg.JWTSecret)
	cfg.LogFile = envOr("FNBOX_LOG_FILE", cfg.LogFile)

	execTimeout, err := envDuration("FNBOX_EXEC_TIMEOUT", cfg.ExecTimeout.Std())
	if err != nil {
		return nil, err
	}
	cfg.ExecTimeout = Duration(execTimeout)

	sampleInterval, err := envDuration("FNBOX_SAMPLE_INTERVAL", cfg.SampleInterval.Std())
	if err != nil {
		return nil, err
	}
	cfg.SampleInterval = Duration(sampleInterval)

	if cfg.MemoryLimitMB, err = envInt64("FNBOX_MEMORY_LIMIT_MB", cfg.MemoryLimitMB); err != nil {
		return nil, err
	}

	cfg.S3.Endpoint = envOr("FNBOX_S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKey = envOr("FNBOX_S3_ACCESS_KEY", cfg.S3.AccessKey)
	cfg.S3.SecretKey = envOr("FNBOX_S3_SECRET_KEY", cfg.S3.SecretKey)
	cfg.S3.Region = envOr("FNBOX_S3_REGION", cfg.S3.Region)
	cfg.S3.Bucket = envOr("FNBOX_S3_BUCKET", cfg.S3.Bucket)
	if v := os.Getenv("FNBOX_S3_USE_SSL"); v != "" {
		cfg.S3.UseSSL = v != "false"
	}

	if cfg.ExecTimeout <= 0 {
		return nil, fmt.Errorf("exec_timeout must be positive, got %s", cfg.ExecTimeout.Std())
	}
	if cfg.SampleInterval <= 0 {
		return nil, fmt.Errorf("sample_interval must be positive, got %s", cfg.SampleInterval.Std())
	}
	if cfg.MemoryLimitMB < 0 {
		return nil, fmt.Errorf("memory_limit_mb must not be negative, got %d", cfg.MemoryLimitMB)
	}
	return cfg, nil
}

// UseS3 reports whether an object storage backend is configured.
func (c *Config) UseS3() bool {
	return c.S3.Endpoint != "" && c.S3.Bucket != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
