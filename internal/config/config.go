package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete prospector configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Store      StoreConfig      `json:"store" mapstructure:"store"`
	Git        GitConfig        `json:"git" mapstructure:"git"`
	Candidates CandidatesConfig `json:"candidates" mapstructure:"candidates"`
	Rules      RulesConfig      `json:"rules" mapstructure:"rules"`
	Advisory   AdvisoryConfig   `json:"advisory" mapstructure:"advisory"`
	LocalCache LocalCacheConfig `json:"localCache" mapstructure:"localCache"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// StoreConfig contains remote preprocessed-feature store configuration
type StoreConfig struct {
	Address string `json:"address" mapstructure:"address"`
	// Mode is one of always, ifavailable, never
	Mode string `json:"mode" mapstructure:"mode"`
	// TimeoutMs bounds each store request
	TimeoutMs int `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// GitConfig contains repository access configuration
type GitConfig struct {
	// CachePath is the directory clones are cached under, keyed by URL
	CachePath string `json:"cachePath" mapstructure:"cachePath"`
	// CloneTimeoutMs bounds the initial clone
	CloneTimeoutMs int `json:"cloneTimeoutMs" mapstructure:"cloneTimeoutMs"`
	// CommandTimeoutMs bounds every other git invocation
	CommandTimeoutMs int `json:"commandTimeoutMs" mapstructure:"commandTimeoutMs"`
}

// CandidatesConfig contains candidate-window configuration
type CandidatesConfig struct {
	// Limit is the hard candidate-count ceiling
	Limit int `json:"limit" mapstructure:"limit"`
	// DaysBefore/DaysAfter bound the time window around the publication
	// date when no tag interval resolves. Fixes usually predate
	// disclosure, hence the asymmetry.
	DaysBefore int `json:"daysBefore" mapstructure:"daysBefore"`
	DaysAfter  int `json:"daysAfter" mapstructure:"daysAfter"`
}

// RulesConfig contains ranking-rule configuration
type RulesConfig struct {
	// Enabled lists rule names, or the single sentinel "ALL"
	Enabled []string `json:"enabled" mapstructure:"enabled"`
	// WeightsFile optionally points at a TOML file overriding rule weights
	WeightsFile string `json:"weightsFile" mapstructure:"weightsFile"`
}

// AdvisoryConfig contains advisory construction configuration
type AdvisoryConfig struct {
	NvdEndpoint     string `json:"nvdEndpoint" mapstructure:"nvdEndpoint"`
	FetchReferences bool   `json:"fetchReferences" mapstructure:"fetchReferences"`
	UseNvd          bool   `json:"useNvd" mapstructure:"useNvd"`
}

// LocalCacheConfig contains the on-disk feature cache configuration
type LocalCacheConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Address:   "http://localhost:8000",
			Mode:      "ifavailable",
			TimeoutMs: 30000,
		},
		Git: GitConfig{
			CachePath:        filepath.Join(os.TempDir(), "git_cache"),
			CloneTimeoutMs:   600000,
			CommandTimeoutMs: 60000,
		},
		Candidates: CandidatesConfig{
			Limit:      2000,
			DaysBefore: 3 * 365,
			DaysAfter:  365,
		},
		Rules: RulesConfig{
			Enabled: []string{"ALL"},
		},
		Advisory: AdvisoryConfig{
			NvdEndpoint:     "https://services.nvd.nist.gov/rest/json/cves/2.0",
			FetchReferences: true,
			UseNvd:          true,
		},
		LocalCache: LocalCacheConfig{
			Enabled: false,
			Path:    "",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// configDirName is the dot-directory holding config.json
const configDirName = ".prospector"

// LoadConfig loads configuration from <root>/.prospector/config.json,
// falling back to defaults when no file exists.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, configDirName))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to <root>/.prospector/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, configDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}
