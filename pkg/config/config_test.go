package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaultsWithSecretFromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("HEALTHBOT_AUTH_JWTSECRET", "test-secret")
	t.Setenv("HEALTHBOT_SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("expected jwt secret from env, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Ingestion.ChunkSize != 1000 || cfg.Ingestion.ChunkOverlap != 200 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Ingestion)
	}
	if cfg.Scan.TimeoutSec != 0 {
		t.Errorf("scan timeout should default to none, got %d", cfg.Scan.TimeoutSec)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	viper.Reset()
	t.Setenv("HEALTHBOT_AUTH_JWTSECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when jwt secret is missing")
	}
}
