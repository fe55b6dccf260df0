package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the node process configuration. Consensus parameters live in
// params.go and are deliberately not part of this file.
type Config struct {
	Network             string `toml:"Network"`
	DataDir             string `toml:"DataDir"`
	DatabasePath        string `toml:"DatabasePath"`
	ProtocolChangesFile string `toml:"ProtocolChangesFile"`
	MetricsAddress      string `toml:"MetricsAddress"`
	LogEnv              string `toml:"LogEnv"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the node cannot start with.
func (c *Config) Validate() error {
	switch c.Network {
	case NetworkMainnet, NetworkTestnet:
	default:
		return fmt.Errorf("config: unknown network %q", c.Network)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("config: DatabasePath must be set")
	}
	return nil
}

// Testnet reports whether the configuration selects the test network.
func (c *Config) Testnet() bool {
	return c.Network == NetworkTestnet
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Network) == "" {
		cfg.Network = NetworkMainnet
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "aspchain.db")
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = "127.0.0.1:9410"
	}
	if strings.TrimSpace(cfg.LogEnv) == "" {
		cfg.LogEnv = "dev"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create directory for %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: write defaults to %s: %w", path, err)
	}
	return cfg, nil
}
