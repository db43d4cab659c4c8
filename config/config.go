package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	JWTSecret      string   `env:"JWT_SECRET"`
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Storage StorageConfig
	APS     APSConfig

	QueryCacheTTL        time.Duration `env:"QUERY_CACHE_TTL" envDefault:"300s"`
	QueryCacheSize       int           `env:"QUERY_CACHE_SIZE" envDefault:"512"`
	MaterializeBatchSize int           `env:"MATERIALIZE_BATCH_SIZE" envDefault:"10000"`
	ExportChunkSize      int           `env:"EXPORT_CHUNK_SIZE" envDefault:"2000"`
}

// StorageConfig selects the backend that holds the uploads/svf/sqlite artifact families.
type StorageConfig struct {
	Driver     string `env:"STORAGE_DRIVER" envDefault:"fs"`
	Root       string `env:"STORAGE_ROOT" envDefault:"./data"`
	StagingDir string `env:"STAGING_DIR"`

	GCSBucket string `env:"GCS_BUCKET"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3PathStyle bool   `env:"S3_PATH_STYLE" envDefault:"false"`
}

type APSConfig struct {
	ClientID     string `env:"APS_CLIENT_ID"`
	ClientSecret string `env:"APS_CLIENT_SECRET"`
	Region       string `env:"APS_REGION" envDefault:"US"`
	BaseURL      string `env:"APS_BASE_URL" envDefault:"https://developer.api.autodesk.com"`
}

func LoadConfig() Config {
	var cfg Config
	// malformed typed values leave their zero value
	_ = env.Parse(&cfg)
	return cfg
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode
}

// Validate returns the environment variables required by the selected
// storage driver that are not set.
func (c Config) Validate() error {
	var missing []string
	switch strings.ToLower(c.Storage.Driver) {
	case "", "fs":
		if c.Storage.Root == "" {
			missing = append(missing, "STORAGE_ROOT")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			missing = append(missing, "GCS_BUCKET")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
