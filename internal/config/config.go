package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"PG_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"PG_DB_MAX_CONNS" default:"8"`

	AdminAccessKey string `envconfig:"ADMIN_ACCESS_KEY" required:"true"`

	UploadDir string `envconfig:"UPLOAD_DIR" default:"./upload"`

	StorageEndpoint  string `envconfig:"STORAGE_ENDPOINT" default:"s3.us-east-005.backblazeb2.com"`
	StorageKeyID     string `envconfig:"STORAGE_KEY_ID" default:""`
	StorageSecretKey string `envconfig:"STORAGE_SECRET_KEY" default:""`
	StorageBucket    string `envconfig:"STORAGE_BUCKET" default:""`
	StorageUseSSL    bool   `envconfig:"STORAGE_USE_SSL" default:"true"`

	TranslationProvider string `envconfig:"TRANSLATION_PROVIDER" default:"google"`
	TranslationEndpoint string `envconfig:"TRANSLATION_ENDPOINT" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.AdminAccessKey) == "" {
		return fmt.Errorf("ADMIN_ACCESS_KEY is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("PG_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("PG_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("PG_DB_MIN_CONNS (%d) cannot exceed PG_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	return nil
}

// StorageConfigured reports whether every object storage credential is present.
// A partially configured backend is treated the same as an absent one.
func (c *Config) StorageConfigured() bool {
	if c == nil {
		return false
	}
	return strings.TrimSpace(c.StorageEndpoint) != "" &&
		strings.TrimSpace(c.StorageKeyID) != "" &&
		strings.TrimSpace(c.StorageSecretKey) != "" &&
		strings.TrimSpace(c.StorageBucket) != ""
}
