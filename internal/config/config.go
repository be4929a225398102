package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"

	DriverSQLite = "sqlite3"
	DriverPgx    = "pgx"
	DriverMemory = "memory"
)

// Config holds all runtime configuration for the asset service.
//
// Durations and byte sizes are read as strings and parsed by Validate, so a
// malformed value is reported by name instead of as a decoder error.
type Config struct {
	Port string `env:"ASSETS_PORT,default=5000"`

	StorageBackend string `env:"STORAGE_BACKEND,default=local"`
	StoragePath    string `env:"STORAGE_PATH,default=/data/assets"`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Region    string `env:"S3_REGION"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3UseSSL    bool   `env:"S3_USE_SSL,default=false"`
	S3PathStyle bool   `env:"S3_PATH_STYLE,default=true"`

	CatalogDriver string `env:"CATALOG_DRIVER,default=sqlite3"`
	CatalogDSN    string `env:"CATALOG_DSN"`

	MaxConcurrentUploads int    `env:"MAX_CONCURRENT_UPLOADS,default=64"`
	MinFreeSpace         string `env:"MIN_FREE_BYTES,default=1GiB"`
	TmpTTLValue          string `env:"TMP_TTL,default=24h"`
	CleanupEvery         string `env:"CLEANUP_INTERVAL,default=1h"`

	LogFormat string `env:"LOG_FORMAT,default=json"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`

	// Filled in by Validate.
	MinFreeBytes    uint64
	TmpTTL          time.Duration
	CleanupInterval time.Duration
}

// Load reads optional dotenv files (".env" when none are given; missing
// files are ignored), decodes the environment and validates the result.
// Variables already set in the process environment win over dotenv values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations, parses the derived fields and fills in the
// default catalog DSN.
func (c *Config) Validate() error {
	var errs []error

	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("ASSETS_PORT: invalid port %q", c.Port))
	}

	switch c.StorageBackend {
	case BackendLocal:
		if c.StoragePath == "" {
			errs = append(errs, errors.New("STORAGE_PATH: required for the local backend"))
		}
	case BackendS3:
		if c.S3Endpoint == "" || c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_ENDPOINT and S3_BUCKET: required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND: unknown backend %q (want local or s3)", c.StorageBackend))
	}

	switch c.CatalogDriver {
	case DriverSQLite:
		if c.CatalogDSN == "" {
			c.CatalogDSN = filepath.Join(c.StoragePath, "catalog", "assets.db")
		}
		if sqliteInMemory(c.CatalogDSN) {
			errs = append(errs, errors.New("CATALOG_DSN: in-memory sqlite is not supported, use CATALOG_DRIVER=memory"))
		}
	case DriverPgx:
		if c.CatalogDSN == "" {
			errs = append(errs, errors.New("CATALOG_DSN: required for the pgx driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("CATALOG_DRIVER: unknown driver %q (want sqlite3, pgx or memory)", c.CatalogDriver))
	}

	if c.MaxConcurrentUploads <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_UPLOADS: must be positive, got %d", c.MaxConcurrentUploads))
	}

	if n, err := humanize.ParseBytes(c.MinFreeSpace); err != nil {
		errs = append(errs, fmt.Errorf("MIN_FREE_BYTES: %w", err))
	} else {
		c.MinFreeBytes = n
	}

	var err error
	if c.TmpTTL, err = positiveDuration("TMP_TTL", c.TmpTTLValue); err != nil {
		errs = append(errs, err)
	}
	if c.CleanupInterval, err = positiveDuration("CLEANUP_INTERVAL", c.CleanupEvery); err != nil {
		errs = append(errs, err)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: unknown format %q (want json or text)", c.LogFormat))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return errors.Join(errs...)
}

func positiveDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, v)
	}
	return d, nil
}

// String implements fmt.Stringer with credentials masked.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Port: %s\n", c.Port)
	fmt.Fprintf(&sb, "  StorageBackend: %s\n", c.StorageBackend)
	fmt.Fprintf(&sb, "  StoragePath: %s\n", c.StoragePath)
	if c.StorageBackend == BackendS3 {
		fmt.Fprintf(&sb, "  S3Endpoint: %s\n", c.S3Endpoint)
		fmt.Fprintf(&sb, "  S3Region: %s\n", c.S3Region)
		fmt.Fprintf(&sb, "  S3Bucket: %s\n", c.S3Bucket)
		fmt.Fprintf(&sb, "  S3AccessKey: %s\n", mask(c.S3AccessKey))
		fmt.Fprintf(&sb, "  S3SecretKey: %s\n", mask(c.S3SecretKey))
		fmt.Fprintf(&sb, "  S3UseSSL: %v\n", c.S3UseSSL)
		fmt.Fprintf(&sb, "  S3PathStyle: %v\n", c.S3PathStyle)
	}
	fmt.Fprintf(&sb, "  CatalogDriver: %s\n", c.CatalogDriver)
	if c.CatalogDriver == DriverSQLite {
		fmt.Fprintf(&sb, "  CatalogDSN: %s\n", c.CatalogDSN)
	} else {
		// Postgres DSNs carry passwords.
		fmt.Fprintf(&sb, "  CatalogDSN: %s\n", mask(c.CatalogDSN))
	}
	fmt.Fprintf(&sb, "  MaxConcurrentUploads: %d\n", c.MaxConcurrentUploads)
	fmt.Fprintf(&sb, "  MinFreeBytes: %s\n", humanize.IBytes(c.MinFreeBytes))
	fmt.Fprintf(&sb, "  TmpTTL: %s\n", c.TmpTTL)
	fmt.Fprintf(&sb, "  CleanupInterval: %s\n", c.CleanupInterval)
	fmt.Fprintf(&sb, "  Log: %s/%s\n", c.LogFormat, c.LogLevel)
	return sb.String()
}

func mask(s string) string {
	if s == "" {
		return "(empty)"
	}
	return "********"
}

// sqliteInMemory matches ":memory:" and "mode=memory" DSNs. The schema is
// migrated on a separate connection and would not be visible to the catalog.
func sqliteInMemory(dsn string) bool {
	path, opts, _ := strings.Cut(dsn, "?")
	return strings.TrimPrefix(path, "file:") == ":memory:" || strings.Contains(opts, "mode=memory")
}
