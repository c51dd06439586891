package config

import (
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.AudioUploadDir != filepath.Join("uploads", "audio") {
		t.Errorf("AudioUploadDir = %q", cfg.AudioUploadDir)
	}
	if cfg.MaxUploadBytes != 50<<20 {
		t.Errorf("MaxUploadBytes = %d, want 50MB", cfg.MaxUploadBytes)
	}
	if cfg.MySQLEnabled() || cfg.RedisEnabled() || cfg.MinioEnabled() {
		t.Error("optional backends enabled without configuration")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("MAX_UPLOAD_MB", "10")
	t.Setenv("UPLOAD_DIR", "data")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("MINIO_ENDPOINT", "minio.internal:9000")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.ListenAddr)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d, want 10MB", cfg.MaxUploadBytes)
	}
	if cfg.AudioUploadDir != filepath.Join("data", "audio") {
		t.Errorf("AudioUploadDir = %q", cfg.AudioUploadDir)
	}
	if !cfg.MySQLEnabled() || !cfg.RedisEnabled() || !cfg.MinioEnabled() {
		t.Error("optional backends not enabled by env")
	}
	if !cfg.MinioUseSSL {
		t.Error("MinioUseSSL not parsed")
	}
}

func TestGetEnvInt_Invalid(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "not-a-number")

	cfg := Load()
	if cfg.MaxUploadBytes != 50<<20 {
		t.Errorf("MaxUploadBytes = %d, want default on invalid value", cfg.MaxUploadBytes)
	}
}
