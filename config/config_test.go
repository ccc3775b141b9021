package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.RPCAddress != ":8645" || cfg.ServiceName != "margind" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("generated addresses should validate: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.CustodianAddress != cfg.CustodianAddress {
		t.Fatalf("custodian address changed across reload")
	}
	if reloaded.AdminAddress == reloaded.OperatorAddress {
		t.Fatalf("generated role addresses should be distinct")
	}
}

func TestValidateRejectsBadAddresses(t *testing.T) {
	cfg := &Config{
		CustodianAddress: "not-an-address",
		AdminAddress:     "also-bad",
		OperatorAddress:  "",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("CustodianAddress = \"broken\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected load to fail on invalid address")
	}
}
