package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags holds the persistent CLI flags that influence configuration.
type GlobalFlags struct {
	ConfigPath string
	Chain      int64
	JSON       bool
	Timeout    string
	NoStore    bool
}

// ChainSettings describes one chain the orchestrator drives.
type ChainSettings struct {
	Name           string
	ChainID        int64
	RPCURL         string
	TradeAddress   string
	USDCAddress    string
	SwapperAddress string
}

// Settings is the fully resolved runtime configuration: defaults, then file,
// then environment, then flags.
type Settings struct {
	JSON          bool
	LogLevel      string
	LogEncoding   string
	GasMultiplier float64
	TxTimeout     time.Duration
	PollInterval  time.Duration
	StoreEnabled  bool
	StorePath     string
	StoreLockPath string
	MetricsAddr   string
	QuoteBaseURL  string
	QuoteCacheDir string
	DefaultChain  int64
	Chains        []ChainSettings
}

type fileConfig struct {
	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"logging"`
	GasMultiplier *float64 `yaml:"gas_multiplier"`
	TxTimeout     string   `yaml:"tx_timeout"`
	PollInterval  string   `yaml:"poll_interval"`
	Store         struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"store"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Quote struct {
		BaseURL  string `yaml:"base_url"`
		CacheDir string `yaml:"cache_dir"`
	} `yaml:"quote"`
	DefaultChain int64 `yaml:"default_chain"`
	Chains       []struct {
		Name           string `yaml:"name"`
		ChainID        int64  `yaml:"chain_id"`
		RPCURL         string `yaml:"rpc_url"`
		TradeAddress   string `yaml:"trade_address"`
		USDCAddress    string `yaml:"usdc_address"`
		SwapperAddress string `yaml:"swapper_address"`
	} `yaml:"chains"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.GasMultiplier < 1 {
		settings.GasMultiplier = 1.1
	}
	if settings.TxTimeout <= 0 {
		settings.TxTimeout = 15 * time.Second
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = time.Second
	}
	return settings, nil
}

// Chain resolves a chain by id, or the default chain when id is zero.
func (s Settings) Chain(id int64) (ChainSettings, error) {
	if id == 0 {
		id = s.DefaultChain
	}
	if id == 0 && len(s.Chains) == 1 {
		return s.Chains[0], nil
	}
	for _, c := range s.Chains {
		if c.ChainID == id {
			return c, nil
		}
	}
	return ChainSettings{}, fmt.Errorf("chain %d is not configured", id)
}

func defaultSettings() (Settings, error) {
	storePath, lockPath, err := defaultStorePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		LogLevel:      "info",
		LogEncoding:   "console",
		GasMultiplier: 1.1,
		TxTimeout:     15 * time.Second,
		PollInterval:  time.Second,
		StoreEnabled:  true,
		StorePath:     storePath,
		StoreLockPath: lockPath,
		QuoteCacheDir: filepath.Dir(storePath),
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tradevault", "config.yaml"), nil
}

func defaultStorePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "tradevault")
	return filepath.Join(dir, "submissions.db"), filepath.Join(dir, "submissions.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Logging.Level != "" {
		settings.LogLevel = cfg.Logging.Level
	}
	if cfg.Logging.Encoding != "" {
		settings.LogEncoding = cfg.Logging.Encoding
	}
	if cfg.GasMultiplier != nil {
		settings.GasMultiplier = *cfg.GasMultiplier
	}
	if cfg.TxTimeout != "" {
		d, err := time.ParseDuration(cfg.TxTimeout)
		if err != nil {
			return fmt.Errorf("config tx_timeout: %w", err)
		}
		settings.TxTimeout = d
	}
	if cfg.PollInterval != "" {
		d, err := time.ParseDuration(cfg.PollInterval)
		if err != nil {
			return fmt.Errorf("config poll_interval: %w", err)
		}
		settings.PollInterval = d
	}
	if cfg.Store.Enabled != nil {
		settings.StoreEnabled = *cfg.Store.Enabled
	}
	if cfg.Store.Path != "" {
		settings.StorePath = cfg.Store.Path
	}
	if cfg.Store.LockPath != "" {
		settings.StoreLockPath = cfg.Store.LockPath
	}
	if cfg.Metrics.Addr != "" {
		settings.MetricsAddr = cfg.Metrics.Addr
	}
	if cfg.Quote.BaseURL != "" {
		settings.QuoteBaseURL = cfg.Quote.BaseURL
	}
	if cfg.Quote.CacheDir != "" {
		settings.QuoteCacheDir = cfg.Quote.CacheDir
	}
	if cfg.DefaultChain != 0 {
		settings.DefaultChain = cfg.DefaultChain
	}
	for _, c := range cfg.Chains {
		settings.Chains = append(settings.Chains, ChainSettings{
			Name:           c.Name,
			ChainID:        c.ChainID,
			RPCURL:         c.RPCURL,
			TradeAddress:   c.TradeAddress,
			USDCAddress:    c.USDCAddress,
			SwapperAddress: c.SwapperAddress,
		})
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("TRADEVAULT_LOG_LEVEL"); v != "" {
		settings.LogLevel = v
	}
	if v := os.Getenv("TRADEVAULT_GAS_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.GasMultiplier = f
		}
	}
	if v := os.Getenv("TRADEVAULT_TX_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.TxTimeout = d
		}
	}
	if v := os.Getenv("TRADEVAULT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.PollInterval = d
		}
	}
	if v := os.Getenv("TRADEVAULT_STORE_PATH"); v != "" {
		settings.StorePath = v
	}
	if v := os.Getenv("TRADEVAULT_STORE_LOCK_PATH"); v != "" {
		settings.StoreLockPath = v
	}
	if v := os.Getenv("TRADEVAULT_METRICS_ADDR"); v != "" {
		settings.MetricsAddr = v
	}
	if v := os.Getenv("TRADEVAULT_QUOTE_BASE_URL"); v != "" {
		settings.QuoteBaseURL = v
	}
	if v := os.Getenv("TRADEVAULT_NO_STORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.StoreEnabled = !b
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON {
		settings.JSON = true
	}
	if flags.Chain != 0 {
		settings.DefaultChain = flags.Chain
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.TxTimeout = d
	}
	if flags.NoStore {
		settings.StoreEnabled = false
	}
	return nil
}
