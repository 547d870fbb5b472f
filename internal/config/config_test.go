package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TRADEVAULT_LOG_LEVEL", "TRADEVAULT_GAS_MULTIPLIER", "TRADEVAULT_TX_TIMEOUT",
		"TRADEVAULT_POLL_INTERVAL", "TRADEVAULT_STORE_PATH", "TRADEVAULT_STORE_LOCK_PATH",
		"TRADEVAULT_METRICS_ADDR", "TRADEVAULT_NO_STORE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.LogLevel != "info" {
		t.Fatalf("log level = %q", settings.LogLevel)
	}
	if settings.GasMultiplier != 1.1 {
		t.Fatalf("gas multiplier = %v", settings.GasMultiplier)
	}
	if settings.TxTimeout != 15*time.Second {
		t.Fatalf("tx timeout = %v", settings.TxTimeout)
	}
	if !settings.StoreEnabled {
		t.Fatal("store must be enabled by default")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
logging:
  level: debug
gas_multiplier: 1.5
tx_timeout: 45s
default_chain: 42161
chains:
  - name: arbitrum
    chain_id: 42161
    rpc_url: http://localhost:8545
    trade_address: "0x1000000000000000000000000000000000000001"
    usdc_address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"
    swapper_address: "0x3000000000000000000000000000000000000001"
`)
	settings, err := Load(GlobalFlags{ConfigPath: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.LogLevel != "debug" {
		t.Fatalf("log level = %q", settings.LogLevel)
	}
	if settings.GasMultiplier != 1.5 {
		t.Fatalf("gas multiplier = %v", settings.GasMultiplier)
	}
	if settings.TxTimeout != 45*time.Second {
		t.Fatalf("tx timeout = %v", settings.TxTimeout)
	}
	if settings.DefaultChain != 42161 {
		t.Fatalf("default chain = %d", settings.DefaultChain)
	}
	chain, err := settings.Chain(0)
	if err != nil {
		t.Fatalf("resolve default chain: %v", err)
	}
	if chain.Name != "arbitrum" || chain.ChainID != 42161 {
		t.Fatalf("chain = %+v", chain)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "tx_timeout: 45s\n")
	t.Setenv("TRADEVAULT_TX_TIMEOUT", "90s")
	settings, err := Load(GlobalFlags{ConfigPath: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.TxTimeout != 90*time.Second {
		t.Fatalf("tx timeout = %v, env must win over file", settings.TxTimeout)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRADEVAULT_TX_TIMEOUT", "90s")
	settings, err := Load(GlobalFlags{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		Timeout:    "2m",
		NoStore:    true,
		Chain:      8453,
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.TxTimeout != 2*time.Minute {
		t.Fatalf("tx timeout = %v, flag must win over env", settings.TxTimeout)
	}
	if settings.StoreEnabled {
		t.Fatal("--no-store must disable the store")
	}
	if settings.DefaultChain != 8453 {
		t.Fatalf("default chain = %d", settings.DefaultChain)
	}
}

func TestChainResolution(t *testing.T) {
	settings := Settings{Chains: []ChainSettings{
		{Name: "arbitrum", ChainID: 42161},
		{Name: "base", ChainID: 8453},
	}}

	if _, err := settings.Chain(0); err == nil {
		t.Fatal("no default with multiple chains must error")
	}
	chain, err := settings.Chain(8453)
	if err != nil {
		t.Fatalf("resolve 8453: %v", err)
	}
	if chain.Name != "base" {
		t.Fatalf("chain = %+v", chain)
	}
	if _, err := settings.Chain(1); err == nil {
		t.Fatal("unknown chain must error")
	}

	// A single configured chain is the implicit default.
	single := Settings{Chains: []ChainSettings{{Name: "base", ChainID: 8453}}}
	chain, err = single.Chain(0)
	if err != nil {
		t.Fatalf("implicit default: %v", err)
	}
	if chain.ChainID != 8453 {
		t.Fatalf("chain = %+v", chain)
	}
}

func TestLoadInvalidTimeoutFlag(t *testing.T) {
	clearEnv(t)
	_, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), Timeout: "soon"})
	if err == nil {
		t.Fatal("expected error for malformed --timeout")
	}
}
