package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file should exist: %v", err)
	}
	if cfg.RPCAddress != ":8645" || cfg.GatewayAddress != ":8080" {
		t.Fatalf("unexpected default addresses: %s %s", cfg.RPCAddress, cfg.GatewayAddress)
	}
	if cfg.StorageBackend != "leveldb" {
		t.Fatalf("unexpected default backend: %s", cfg.StorageBackend)
	}
	if cfg.DefaultFeeBps != 500 {
		t.Fatalf("unexpected default fee: %d", cfg.DefaultFeeBps)
	}

	// Reloading the written file round-trips the defaults.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *again != *cfg {
		t.Fatalf("reload mismatch: %+v vs %+v", again, cfg)
	}
}

func TestLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "RPCAddress = \":9999\"\nStorageBackend = \"memory\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9999" {
		t.Fatalf("explicit value overridden: %s", cfg.RPCAddress)
	}
	if cfg.StorageBackend != "memory" {
		t.Fatalf("explicit backend overridden: %s", cfg.StorageBackend)
	}
	if cfg.NetworkName != "fare-local" || cfg.RPCWriteTimeout != 30 {
		t.Fatalf("missing fields not defaulted: %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StorageBackend = "sqlite" }},
		{"bad collector", func(c *Config) { c.FeeCollector = "not-bech32" }},
		{"fee out of range", func(c *Config) { c.DefaultFeeBps = 10_001 }},
	}
	for _, tc := range cases {
		cfg := &Config{}
		cfg.applyDefaults()
		tc.mut(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestFeeCollectorAddress(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if cfg.FeeCollectorAddress() != [20]byte{} {
		t.Fatalf("unset collector should be the zero address")
	}
}
