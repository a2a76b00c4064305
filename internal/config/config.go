package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string `yaml:"host"`
	Port               string `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Name               string `yaml:"name"`
	SSLMode            string `yaml:"sslmode"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
	ConnectAttempts    int    `yaml:"connect_attempts"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // postgres | bolt
	BoltPath string `yaml:"bolt_path"`
}

// IndexConfig selects the search index backend.
type IndexConfig struct {
	Driver    string `yaml:"driver"` // bleve | postgres
	BlevePath string `yaml:"bleve_path"`
}

// BlobConfig selects the attachment blob backend.
type BlobConfig struct {
	Driver string `yaml:"driver"` // minio | fs
	Dir    string `yaml:"dir"`
}

// RetryConfig bounds the asynchronous convergence retries.
type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	InitialDelayMs int `yaml:"initial_delay_ms"`
	MaxDelayMs     int `yaml:"max_delay_ms"`
	QueueSize      int `yaml:"queue_size"`
}

// InitialDelay returns the first backoff interval.
func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables, optionally overlaid by a YAML settings file
// and finally by command line flags.
type AppConfig struct {
	AppHost           string         `yaml:"app_host"`
	Address           string         `yaml:"address"`
	Port              string         `yaml:"port"`
	Debug             bool           `yaml:"debug"`
	Timezone          string         `yaml:"timezone"`
	MaxResultsPerPage int            `yaml:"max_results_per_page"`
	StagingDir        string         `yaml:"staging_dir"`
	Database          DatabaseConfig `yaml:"database"`
	MinIO             MinIOConfig    `yaml:"minio"`
	Store             StoreConfig    `yaml:"store"`
	Index             IndexConfig    `yaml:"index"`
	Blob              BlobConfig     `yaml:"blob"`
	Retry             RetryConfig    `yaml:"retry"`
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *AppConfig) ListenAddr() string {
	return c.Address + ":" + c.Port
}

// Location resolves Timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:           getEnv("APP_HOST", "localhost:8080"),
		Address:           getEnv("ADDRESS", ""),
		Port:              getEnv("PORT", "8080"),
		Debug:             getEnvBool("DEBUG", false),
		Timezone:          getEnv("TZ", "UTC"),
		MaxResultsPerPage: getEnvInt("MAX_RESULTS_PER_PAGE", 50),
		StagingDir:        getEnv("STAGING_DIR", os.TempDir()),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			ConnectAttempts:    getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Store: StoreConfig{
			Driver:   getEnv("STORE_DRIVER", "postgres"),
			BoltPath: getEnv("BOLT_PATH", "./data/volumes.db"),
		},
		Index: IndexConfig{
			Driver:    getEnv("INDEX_DRIVER", "bleve"),
			BlevePath: getEnv("BLEVE_PATH", "./data/volumes.bleve"),
		},
		Blob: BlobConfig{
			Driver: getEnv("BLOB_DRIVER", "minio"),
			Dir:    getEnv("BLOB_DIR", "./data/blobs"),
		},
		Retry: RetryConfig{
			MaxAttempts:    getEnvInt("RETRY_MAX_ATTEMPTS", 5),
			InitialDelayMs: getEnvInt("RETRY_INITIAL_DELAY_MS", 200),
			MaxDelayMs:     getEnvInt("RETRY_MAX_DELAY_MS", 10000),
			QueueSize:      getEnvInt("RETRY_QUEUE_SIZE", 1024),
		},
	}
}

// LoadFile returns the environment configuration overlaid with the YAML settings file at path.
// Keys absent from the file keep their environment or default value.
func LoadFile(path string) (*AppConfig, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects driver names and limits the application cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case "postgres", "bolt":
	default:
		return fmt.Errorf("invalid store driver %q", c.Store.Driver)
	}
	switch c.Index.Driver {
	case "bleve", "postgres":
	default:
		return fmt.Errorf("invalid index driver %q", c.Index.Driver)
	}
	switch c.Blob.Driver {
	case "minio", "fs":
	default:
		return fmt.Errorf("invalid blob driver %q", c.Blob.Driver)
	}
	if c.MaxResultsPerPage <= 0 {
		return fmt.Errorf("max results per page must be positive, got %d", c.MaxResultsPerPage)
	}
	return nil
}

// UsesPostgres reports whether any backend needs the PostgreSQL connection.
func (c *AppConfig) UsesPostgres() bool {
	return c.Store.Driver == "postgres" || c.Index.Driver == "postgres"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
