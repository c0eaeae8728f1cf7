package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"fareledger/crypto"
)

// Config is the daemon configuration, loaded from a TOML file. A default file
// is written on first run so operators have something to edit.
type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	GatewayAddress  string `toml:"GatewayAddress"`
	DataDir         string `toml:"DataDir"`
	StorageBackend  string `toml:"StorageBackend"`
	GenesisFile     string `toml:"GenesisFile"`
	NetworkName     string `toml:"NetworkName"`
	FeeCollector    string `toml:"FeeCollector"`
	DefaultFeeBps   uint32 `toml:"DefaultFeeBps"`
	LogFile         string `toml:"LogFile"`
	LogMaxSizeMB    int    `toml:"LogMaxSizeMB"`
	LogMaxBackups   int    `toml:"LogMaxBackups"`
	RPCWriteTimeout int    `toml:"RPCWriteTimeout"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8645"
	}
	if strings.TrimSpace(c.GatewayAddress) == "" {
		c.GatewayAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = "leveldb"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "fare-local"
	}
	if c.DefaultFeeBps == 0 {
		c.DefaultFeeBps = 500
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.RPCWriteTimeout == 0 {
		c.RPCWriteTimeout = 30
	}
}

// Validate rejects configurations that would only fail later at settlement
// time, mirroring the creation-time validation the escrow entries themselves
// perform.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.StorageBackend)) {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("config: unsupported storage backend %q", c.StorageBackend)
	}
	if strings.TrimSpace(c.FeeCollector) != "" {
		if _, err := crypto.DecodeAddress(c.FeeCollector); err != nil {
			return fmt.Errorf("config: fee collector: %w", err)
		}
	}
	if c.DefaultFeeBps > 10_000 {
		return fmt.Errorf("config: DefaultFeeBps %d out of range", c.DefaultFeeBps)
	}
	return nil
}

// FeeCollectorAddress decodes the configured fee collector, returning the
// zero address when unset. A zero collector disables fee-bearing releases.
func (c *Config) FeeCollectorAddress() [20]byte {
	trimmed := strings.TrimSpace(c.FeeCollector)
	if trimmed == "" {
		return [20]byte{}
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}
	}
	return addr.Raw()
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
