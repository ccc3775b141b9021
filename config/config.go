package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"margincore/crypto"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	ServiceName string `toml:"ServiceName"`
	Environment string `toml:"Environment"`
	LogFile     string `toml:"LogFile,omitempty"`

	// Bech32 account addresses for the service roles.
	CustodianAddress string `toml:"CustodianAddress"`
	AdminAddress     string `toml:"AdminAddress"`
	OperatorAddress  string `toml:"OperatorAddress"`

	// Request quota applied per client on the query surface. Zero disables.
	QuotaMaxRequests  uint32 `toml:"QuotaMaxRequests"`
	QuotaWindowSecond uint32 `toml:"QuotaWindowSeconds"`
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
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = "margind"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
}

// Validate checks that every configured role address decodes.
func (c *Config) Validate() error {
	for _, role := range []struct {
		name  string
		value string
	}{
		{"CustodianAddress", c.CustodianAddress},
		{"AdminAddress", c.AdminAddress},
		{"OperatorAddress", c.OperatorAddress},
	} {
		if strings.TrimSpace(role.value) == "" {
			return fmt.Errorf("config: %s is required", role.name)
		}
		if _, err := crypto.DecodeAddress(role.value); err != nil {
			return fmt.Errorf("config: invalid %s: %w", role.name, err)
		}
	}
	return nil
}

// Addresses returns the decoded role addresses in custodian, admin, operator
// order. Call Validate first.
func (c *Config) Addresses() (crypto.Address, crypto.Address, crypto.Address, error) {
	custodian, err := crypto.DecodeAddress(c.CustodianAddress)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, crypto.Address{}, err
	}
	admin, err := crypto.DecodeAddress(c.AdminAddress)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, crypto.Address{}, err
	}
	operator, err := crypto.DecodeAddress(c.OperatorAddress)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, crypto.Address{}, err
	}
	return custodian, admin, operator, nil
}

// createDefault creates and saves a default configuration file. The role
// addresses are generated fresh so a local instance boots without editing.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:        ":8645",
		ServiceName:       "margind",
		Environment:       "local",
		QuotaMaxRequests:  100,
		QuotaWindowSecond: 60,
	}
	for _, target := range []*string{&cfg.CustodianAddress, &cfg.AdminAddress, &cfg.OperatorAddress} {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		*target = key.PubKey().Address().String()
	}
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
