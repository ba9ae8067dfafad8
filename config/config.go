package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node configuration loaded from a TOML file. Missing files
// are created with defaults so a fresh checkout boots without setup.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	NetworkName    string `toml:"NetworkName"`
	LogLevel       string `toml:"LogLevel"`
	LogEnvironment string `toml:"LogEnvironment"`
	AdminAddress   string `toml:"AdminAddress"`

	Lending LendingConfig `toml:"lending"`
	Rates   RatesConfig   `toml:"rates"`
}

// LendingConfig carries the risk parameters applied at boot.
type LendingConfig struct {
	MinCollateralRatioBps uint64 `toml:"MinCollateralRatioBps"`
}

// RatesConfig carries the interest curve applied at genesis. A node joining
// an initialized network ignores these in favor of the stored model.
type RatesConfig struct {
	BaseRateBps           uint64 `toml:"BaseRateBps"`
	OptimalUtilizationBps uint64 `toml:"OptimalUtilizationBps"`
	Slope1Bps             uint64 `toml:"Slope1Bps"`
	Slope2Bps             uint64 `toml:"Slope2Bps"`
}

func defaults() *Config {
	return &Config{
		RPCAddress:     "127.0.0.1:8645",
		MetricsAddress: "127.0.0.1:9464",
		DataDir:        "./credchain-data",
		NetworkName:    "credchain-local",
		LogLevel:       "info",
		LogEnvironment: "development",
		Lending: LendingConfig{
			MinCollateralRatioBps: 15_000,
		},
		Rates: RatesConfig{
			BaseRateBps:           200,
			OptimalUtilizationBps: 8_000,
			Slope1Bps:             1_000,
			Slope2Bps:             3_000,
		},
	}
}

// Load reads the configuration at path, creating it with defaults when it
// does not exist. Zero-valued fields fall back to defaults after decoding.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := defaults()
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = def.RPCAddress
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = def.MetricsAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = def.DataDir
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = def.NetworkName
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = def.LogLevel
	}
	if strings.TrimSpace(cfg.LogEnvironment) == "" {
		cfg.LogEnvironment = def.LogEnvironment
	}
	if cfg.Lending.MinCollateralRatioBps == 0 {
		cfg.Lending = def.Lending
	}
	if cfg.Rates == (RatesConfig{}) {
		cfg.Rates = def.Rates
	}
}

func createDefault(path string) (*Config, error) {
	cfg := defaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
