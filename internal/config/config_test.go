package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsWithoutFile(t *testing.T) {
	os.Unsetenv("PLASO_WORKER_COUNT")
	cfg := &Config{Sources: []string{"/var/log"}}
	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if cfg.WorkerCount != 4 {
		t.Fatalf("expected default worker count 4, got %d", cfg.WorkerCount)
	}
	if cfg.StoreCodec != "zstd" {
		t.Fatalf("expected default codec zstd, got %q", cfg.StoreCodec)
	}
	if cfg.Collector.LowWatermark != cfg.Collector.HighWatermark/2 {
		t.Fatalf("expected low watermark to default to half of high watermark")
	}
	if cfg.Queue.Backend != "chan" {
		t.Fatalf("expected default queue backend chan, got %q", cfg.Queue.Backend)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected defaulted config to validate, got %v", err)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plaso.yaml")
	contents := "sources:\n  - /mnt/evidence\nworker_count: 8\nstore_codec: lz4\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected worker_count 8 from file, got %d", cfg.WorkerCount)
	}
	if cfg.StoreCodec != "lz4" {
		t.Fatalf("expected store_codec lz4 from file, got %q", cfg.StoreCodec)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0] != "/mnt/evidence" {
		t.Fatalf("expected sources from file, got %v", cfg.Sources)
	}
}

func TestEnvironmentOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plaso.yaml")
	if err := os.WriteFile(path, []byte("sources:\n  - /mnt/evidence\nworker_count: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("PLASO_WORKER_COUNT", "16")
	defer os.Unsetenv("PLASO_WORKER_COUNT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkerCount != 16 {
		t.Fatalf("expected env override to win, got %d", cfg.WorkerCount)
	}
}

func TestValidateRejectsMissingSources(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for missing sources")
	}
}

func TestValidateRejectsInvertedWatermarks(t *testing.T) {
	cfg := &Config{Sources: []string{"/a"}}
	applyDefaults(cfg)
	cfg.Collector.HighWatermark = 10
	cfg.Collector.LowWatermark = 20
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for low > high watermark")
	}
}

func TestValidateRejectsUnknownCodec(t *testing.T) {
	cfg := &Config{Sources: []string{"/a"}}
	applyDefaults(cfg)
	cfg.StoreCodec = "rot13"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for unknown codec")
	}
}

func TestValidateRequiresBrokersForKafkaBackend(t *testing.T) {
	cfg := &Config{Sources: []string{"/a"}}
	applyDefaults(cfg)
	cfg.Queue.Backend = "kafka"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for kafka backend without brokers")
	}
}

func TestToStoreCodecResolvesName(t *testing.T) {
	cfg := &Config{StoreCodec: "snappy"}
	codec, err := ParseCodec("snappy")
	if err != nil {
		t.Fatalf("ParseCodec: %v", err)
	}
	if cfg.ToStoreCodec() != codec {
		t.Fatalf("expected resolved codec to match ParseCodec result")
	}
}
