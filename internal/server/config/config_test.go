package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if cfg.DatabaseDSN == "" {
		t.Fatalf("expected default DSN")
	}
	if cfg.StepUpValidityDuration != 15*time.Minute {
		t.Fatalf("expected 15m step-up validity, got %v", cfg.StepUpValidityDuration)
	}
	if cfg.MasterKeySecret == "" || cfg.AppSecret == "" {
		t.Fatalf("expected default secrets to be populated")
	}
	if cfg.MasterKeySecret == cfg.AppSecret {
		t.Fatalf("master and application secrets must differ")
	}
	if cfg.S3Bucket == "" || cfg.S3Region == "" {
		t.Fatalf("expected S3 defaults to be populated")
	}
}

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"server", "-d", "postgres://example/db", "-w", "5"}

	cfg := LoadConfig()
	if cfg.DatabaseDSN != "postgres://example/db" {
		t.Fatalf("flag did not override DSN: %q", cfg.DatabaseDSN)
	}
	if cfg.StepUpValidityDuration != 5*time.Minute {
		t.Fatalf("flag did not override step-up validity: %v", cfg.StepUpValidityDuration)
	}
	// Untouched fields keep their defaults.
	if cfg.S3Bucket != "vault" {
		t.Fatalf("unexpected bucket: %q", cfg.S3Bucket)
	}
}
