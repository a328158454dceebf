// Package config loads ledger settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"voting-ledger/encryption"
	"voting-ledger/models"
	"voting-ledger/registry"
	"voting-ledger/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VOTE_LEDGER_"

// DefaultSecretRef points at the environment variable holding the signing secret.
const DefaultSecretRef = "env://VOTE_LEDGER_SIGNING_SECRET"

// Config holds every ledger setting.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Signing  SigningConfig  `yaml:"signing"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
}

type StorageConfig struct {
	Backend storage.Backend `yaml:"backend"`
	DataDir string          `yaml:"data_dir"`
	// ArchiveKeep is the number of snapshots kept per reason; 0 keeps all.
	ArchiveKeep int `yaml:"archive_keep"`
	// ArchiveDisabled turns off snapshots of discarded and reset chains.
	ArchiveDisabled bool `yaml:"archive_disabled"`
}

type LedgerConfig struct {
	Difficulty        int    `yaml:"difficulty"`
	MaxMiningAttempts uint64 `yaml:"max_mining_attempts"`
}

type SigningConfig struct {
	// Secret is a secret reference such as env://NAME or keyring://service/account.
	Secret          string        `yaml:"secret"`
	FreshnessWindow time.Duration `yaml:"freshness_window"`
}

type RegistryConfig struct {
	Policy registry.DuplicatePolicy `yaml:"policy"`
}

type LogConfig struct {
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:     storage.BackendJSON,
			DataDir:     filepath.Join(Dir(), "data"),
			ArchiveKeep: 10,
		},
		Ledger: LedgerConfig{
			Difficulty:        models.DefaultDifficulty,
			MaxMiningAttempts: models.DefaultMaxMiningAttempts,
		},
		Signing: SigningConfig{
			Secret:          DefaultSecretRef,
			FreshnessWindow: encryption.DefaultFreshnessWindow,
		},
		Registry: RegistryConfig{
			Policy: registry.PolicyPerVoter,
		},
	}
}

// Dir returns the path to ~/.vote-ledger.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".vote-ledger")
	}
	return filepath.Join(homeDir, ".vote-ledger")
}

// Load reads the config file at path and applies environment overrides. An
// empty path reads ~/.vote-ledger/config.yaml if it exists. The result is
// not validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(Dir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPrefix + "BACKEND"); v != "" {
		c.Storage.Backend = storage.Backend(v)
	}
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv(EnvPrefix + "SECRET"); v != "" {
		c.Signing.Secret = v
	}
	if v := os.Getenv(EnvPrefix + "POLICY"); v != "" {
		c.Registry.Policy = registry.DuplicatePolicy(v)
	}
	if v := os.Getenv(EnvPrefix + "DIFFICULTY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sDIFFICULTY: %w", EnvPrefix, err)
		}
		c.Ledger.Difficulty = n
	}
	if v := os.Getenv(EnvPrefix + "FRESHNESS_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sFRESHNESS_WINDOW: %w", EnvPrefix, err)
		}
		c.Signing.FreshnessWindow = d
	}
	if v := os.Getenv(EnvPrefix + "VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVERBOSE: %w", EnvPrefix, err)
		}
		c.Log.Verbose = b
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Storage.Backend == "" {
		c.Storage.Backend = storage.BackendJSON
	}
	known := false
	for _, b := range storage.Backends {
		if c.Storage.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.DataDir == "" && c.Storage.Backend != storage.BackendMemory {
		return errors.New("storage.data_dir is required")
	}
	if c.Storage.ArchiveKeep < 0 {
		return fmt.Errorf("storage.archive_keep must not be negative, got %d", c.Storage.ArchiveKeep)
	}
	if c.Ledger.Difficulty < 0 || c.Ledger.Difficulty > 64 {
		return fmt.Errorf("ledger.difficulty must be between 0 and 64, got %d", c.Ledger.Difficulty)
	}
	if c.Signing.Secret == "" {
		return errors.New("signing.secret is required")
	}
	if c.Signing.FreshnessWindow <= 0 {
		return fmt.Errorf("signing.freshness_window must be positive, got %s", c.Signing.FreshnessWindow)
	}
	policy, err := registry.ParsePolicy(string(c.Registry.Policy))
	if err != nil {
		return fmt.Errorf("registry.policy: %w", err)
	}
	c.Registry.Policy = policy
	return nil
}
