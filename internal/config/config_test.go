package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("rpc_urls:\n  - https://a.example\n  - https://b.example\nbatch_size: 25\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(Defaults(), path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if len(cfg.RPCURLs) != 2 || cfg.BatchSize != 25 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("expected default concurrency preserved, got %d", cfg.Concurrency)
	}
}

func TestLoadFileMissingIsNotError(t *testing.T) {
	cfg, err := LoadFile(Defaults(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.ChainID != 8453 {
		t.Errorf("expected defaults preserved, got %+v", cfg)
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("ETHSCRIPTIONS_RPC_URLS", "https://x.example,https://y.example")
	t.Setenv("ETHSCRIPTIONS_CHAIN_ID", "1")

	cfg := LoadEnv(Defaults())
	if len(cfg.RPCURLs) != 2 || cfg.RPCURLs[1] != "https://y.example" {
		t.Fatalf("unexpected rpc urls: %+v", cfg.RPCURLs)
	}
	if cfg.ChainID != 1 {
		t.Errorf("expected chain id override, got %d", cfg.ChainID)
	}
}

func TestFinalizeValidation(t *testing.T) {
	cfg := Defaults()
	if _, err := cfg.Finalize(); err == nil {
		t.Fatal("expected error for missing rpc urls")
	}

	cfg.RPCURLs = []string{"https://a.example"}
	final, err := cfg.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.PollInterval.Milliseconds() != 500 {
		t.Errorf("expected default poll interval 500ms, got %v", final.PollInterval)
	}
}
