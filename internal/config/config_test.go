package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Fatalf("APIPort = %q", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.BlobChunkBytes != 256<<10 {
		t.Fatalf("BlobChunkBytes = %d", cfg.BlobChunkBytes)
	}
	if cfg.ExtractTimeoutSeconds != 15 {
		t.Fatalf("ExtractTimeoutSeconds = %d", cfg.ExtractTimeoutSeconds)
	}
	if cfg.NATSSubject != "files.uploaded" {
		t.Fatalf("NATSSubject = %q", cfg.NATSSubject)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("API_RATE_LIMIT_RPS", "5")

	cfg := Load()
	if cfg.APIPort != "9090" {
		t.Fatalf("APIPort = %q", cfg.APIPort)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.APIRateLimitRPS != 5 {
		t.Fatalf("APIRateLimitRPS = %d", cfg.APIRateLimitRPS)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("BLOB_CHUNK_BYTES", "not-a-number")

	cfg := Load()
	if cfg.BlobChunkBytes != 256<<10 {
		t.Fatalf("BlobChunkBytes = %d, want default", cfg.BlobChunkBytes)
	}
}

func TestLoadConfigFileThenEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte("api_port: \"7070\"\nlog_level: debug\nmax_upload_bytes: 2097152\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_PORT", "9191")

	cfg := Load()
	if cfg.APIPort != "9191" {
		t.Fatalf("APIPort = %q, env should win over file", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want value from file", cfg.LogLevel)
	}
	if cfg.MaxUploadBytes != 2<<20 {
		t.Fatalf("MaxUploadBytes = %d, want value from file", cfg.MaxUploadBytes)
	}
}
