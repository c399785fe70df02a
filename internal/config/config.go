// Package config loads duesdesk settings from defaults, an optional YAML file,
// an optional .env file and DUESDESK_* environment variables, in that order.
package config

import (
	"duesdesk/internal/blob"
	"duesdesk/internal/core"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no -config flag is given.
const DefaultPath = "duesdesk.yaml"

// Config holds every setting.
type Config struct {
	Storage struct {
		Driver      string `yaml:"driver" env:"DUESDESK_STORAGE_DRIVER"`
		SQLitePath  string `yaml:"sqlite_path" env:"DUESDESK_SQLITE_PATH"`
		PostgresDSN string `yaml:"postgres_dsn" env:"DUESDESK_POSTGRES_DSN"`
	} `yaml:"storage"`

	Blob struct {
		Driver string `yaml:"driver" env:"DUESDESK_BLOB_DRIVER"`
		FSRoot string `yaml:"fs_root" env:"DUESDESK_BLOB_FS_ROOT"`
		S3     struct {
			Bucket    string `yaml:"bucket" env:"DUESDESK_BLOB_S3_BUCKET"`
			Region    string `yaml:"region" env:"DUESDESK_BLOB_S3_REGION"`
			Endpoint  string `yaml:"endpoint" env:"DUESDESK_BLOB_S3_ENDPOINT"`
			Prefix    string `yaml:"prefix" env:"DUESDESK_BLOB_S3_PREFIX"`
			PathStyle bool   `yaml:"path_style" env:"DUESDESK_BLOB_S3_PATH_STYLE"`
		} `yaml:"s3"`
	} `yaml:"blob"`

	Logging struct {
		Level  string `yaml:"level" env:"DUESDESK_LOG_LEVEL"`
		Format string `yaml:"format" env:"DUESDESK_LOG_FORMAT"`
		Trace  bool   `yaml:"trace" env:"DUESDESK_LOG_TRACE"`
		Audit  bool   `yaml:"audit" env:"DUESDESK_LOG_AUDIT"`
	} `yaml:"logging"`

	Console struct {
		Addr string `yaml:"addr" env:"DUESDESK_CONSOLE_ADDR"`
	} `yaml:"console"`

	Actor       string   `yaml:"actor" env:"DUESDESK_ACTOR"`
	Departments []string `yaml:"departments" env:"DUESDESK_DEPARTMENTS"`
	PageSize    int      `yaml:"page_size" env:"DUESDESK_PAGE_SIZE"`
}

// Load builds the configuration. A missing file at path is not an error. A
// .env file in the working directory is loaded before environment overrides
// and never replaces variables already set.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := processStructFields(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Storage.Driver = string(core.StorageSQLite)
	cfg.Storage.SQLitePath = "./duesdesk.db"

	cfg.Blob.Driver = string(blob.DriverFilesystem)
	cfg.Blob.FSRoot = "./archive"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Logging.Audit = true

	cfg.Console.Addr = ":8080"

	cfg.Actor = core.DefaultActor
	cfg.Departments = append([]string(nil), core.DefaultDepartments...)
	cfg.PageSize = core.DefaultPageSize
}

// Validate rejects unknown drivers, a page size below one, an empty actor
// and driver settings missing their required companions.
func (c *Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if strings.TrimSpace(c.Blob.S3.Bucket) == "" {
			return errors.New("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}

	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be at least 1, got %d", c.PageSize)
	}
	if strings.TrimSpace(c.Actor) == "" {
		return errors.New("actor is required")
	}
	if len(c.Departments) == 0 {
		return errors.New("at least one department is required")
	}
	return nil
}

// StorageConfig converts the storage section.
func (c *Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobConfig converts the blob section. S3 credentials come from the AWS
// environment.
func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			Prefix:    c.Blob.S3.Prefix,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}
