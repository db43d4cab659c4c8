package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_ReadsEnvVars(t *testing.T) {
	env := map[string]string{
		"DB_HOST":         "localhost",
		"DB_PORT":         "5432",
		"DB_USER":         "user1",
		"DB_PASSWORD":     "pass1",
		"DB_NAME":         "db1",
		"JWT_SECRET":      "secret",
		"STORAGE_DRIVER":  "s3",
		"S3_BUCKET":       "artifacts",
		"APS_REGION":      "EMEA",
		"QUERY_CACHE_TTL": "90s",
	}

	for k, v := range env {
		os.Setenv(k, v)
		t.Cleanup(func(key string) func() {
			return func() { os.Unsetenv(key) }
		}(k))
	}

	cfg := LoadConfig()

	if cfg.DBHost != env["DB_HOST"] {
		t.Fatalf("DBHost=%q want %q", cfg.DBHost, env["DB_HOST"])
	}
	if cfg.DBPort != env["DB_PORT"] {
		t.Fatalf("DBPort=%q want %q", cfg.DBPort, env["DB_PORT"])
	}
	if cfg.DBUser != env["DB_USER"] {
		t.Fatalf("DBUser=%q want %q", cfg.DBUser, env["DB_USER"])
	}
	if cfg.DBPassword != env["DB_PASSWORD"] {
		t.Fatalf("DBPassword=%q want %q", cfg.DBPassword, env["DB_PASSWORD"])
	}
	if cfg.DBName != env["DB_NAME"] {
		t.Fatalf("DBName=%q want %q", cfg.DBName, env["DB_NAME"])
	}
	if cfg.JWTSecret != env["JWT_SECRET"] {
		t.Fatalf("JWTSecret=%q want %q", cfg.JWTSecret, env["JWT_SECRET"])
	}
	if cfg.Storage.Driver != "s3" || cfg.Storage.S3Bucket != "artifacts" {
		t.Fatalf("storage=%+v", cfg.Storage)
	}
	if cfg.APS.Region != "EMEA" {
		t.Fatalf("APS.Region=%q", cfg.APS.Region)
	}
	if cfg.QueryCacheTTL != 90*time.Second {
		t.Fatalf("QueryCacheTTL=%v", cfg.QueryCacheTTL)
	}
}

func TestLoadConfig_MissingVars_ReturnEmptyStrings(t *testing.T) {
	keys := []string{
		"DB_HOST",
		"DB_PORT",
		"DB_USER",
		"DB_PASSWORD",
		"DB_NAME",
		"JWT_SECRET",
	}

	for _, k := range keys {
		os.Unsetenv(k)
	}

	cfg := LoadConfig()

	if cfg.DBHost != "" || cfg.DBPort != "" || cfg.DBUser != "" || cfg.DBPassword != "" || cfg.DBName != "" ||
		cfg.JWTSecret != "" {
		t.Fatalf("expected all empty strings, got: %+v", cfg)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORAGE_DRIVER", "QUERY_CACHE_TTL", "MATERIALIZE_BATCH_SIZE", "DB_SSLMODE"} {
		os.Unsetenv(k)
	}

	cfg := LoadConfig()

	if cfg.Port != "8080" {
		t.Fatalf("Port=%q", cfg.Port)
	}
	if cfg.Storage.Driver != "fs" {
		t.Fatalf("Driver=%q", cfg.Storage.Driver)
	}
	if cfg.QueryCacheTTL != 300*time.Second {
		t.Fatalf("QueryCacheTTL=%v", cfg.QueryCacheTTL)
	}
	if cfg.MaterializeBatchSize != 10000 {
		t.Fatalf("MaterializeBatchSize=%d", cfg.MaterializeBatchSize)
	}
	if !strings.Contains(cfg.DSN(), "sslmode=disable") {
		t.Fatalf("DSN=%q", cfg.DSN())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		storage StorageConfig
		wantErr string
	}{
		{"fs ok", StorageConfig{Driver: "fs", Root: "/tmp"}, ""},
		{"gcs missing bucket", StorageConfig{Driver: "gcs"}, "GCS_BUCKET"},
		{"s3 missing bucket", StorageConfig{Driver: "s3"}, "S3_BUCKET"},
		{"s3 ok", StorageConfig{Driver: "s3", S3Bucket: "b"}, ""},
		{"unknown driver", StorageConfig{Driver: "ftp"}, "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{Storage: tt.storage}.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err=%v want contains %q", err, tt.wantErr)
			}
		})
	}
}
