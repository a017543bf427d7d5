package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ebau/lotledger/exchange"
)

// Config is the application configuration, read once from the YAML config
// file. Every field has a workable default except the keypair, which the
// transfer commands require.
type Config struct {
	// LedgerDir holds the .jsonl ledger files.
	LedgerDir string `yaml:"ledger_dir"`
	// RPCURL is the Solana JSON-RPC endpoint.
	RPCURL string `yaml:"rpc_url"`
	// Keypair is the authority keypair file, solana-keygen format.
	Keypair string `yaml:"keypair"`
	// SPLTokenBinary overrides the spl-token executable used for non-native
	// token transfers.
	SPLTokenBinary string `yaml:"spl_token_binary"`
	// Venues configures the cash-out exchanges, keyed by registered name.
	Venues map[string]exchange.Config `yaml:"venues"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yml"
	}
	return filepath.Join(home, ".config", "lotl", "config.yml")
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

var loadedConfig *Config

// loadConfig reads the config file once and applies defaults. A missing file
// is not an error: every command that only reads the ledger works without one.
func loadConfig() (*Config, error) {
	if loadedConfig != nil {
		return loadedConfig, nil
	}
	path := *configFile
	if path == "" {
		path = defaultConfigPath()
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", path, err)
		}
	}

	if cfg.LedgerDir == "" {
		cfg.LedgerDir = "~/.lotl"
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = "https://api.mainnet-beta.solana.com"
	}
	cfg.LedgerDir = expandHome(cfg.LedgerDir)
	cfg.Keypair = expandHome(cfg.Keypair)

	loadedConfig = cfg
	return cfg, nil
}
