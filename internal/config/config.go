package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.deepsearch/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	// Keywords is the watch list checked against every inbound message
	// and used by keyword scan jobs.
	Keywords []string `toml:"keywords"`

	// LexiconLang selects the embedded profanity lexicon (e.g. "en").
	LexiconLang string `toml:"lexicon_lang"`

	// NotifyChannel, when set, receives search progress and watch hit
	// notifications as platform messages.
	NotifyChannel string `toml:"notify_channel"`

	// DefaultLimit is the per-channel message limit for non-deep searches.
	DefaultLimit int `toml:"default_limit"`

	// DeepThreshold marks a custom limit above this value as expensive.
	DeepThreshold int `toml:"deep_threshold"`

	// CooldownMinutes is the trailing window between expensive searches.
	CooldownMinutes int `toml:"cooldown_minutes"`

	AutoScanEnabled         bool `toml:"auto_scan_enabled"`
	AutoScanIntervalMinutes int  `toml:"auto_scan_interval_minutes"`

	PrintMessages bool `toml:"print_messages"`
	PrintUsers    bool `toml:"print_users"`
}

// Default returns the configuration used when no config.toml exists yet.
func Default() *Config {
	return &Config{
		DefaultSession:          "main",
		Keywords:                []string{},
		LexiconLang:             "en",
		DefaultLimit:            500,
		DeepThreshold:           1000,
		CooldownMinutes:         10,
		AutoScanEnabled:         false,
		AutoScanIntervalMinutes: 60,
		PrintMessages:           true,
		PrintUsers:              true,
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads config from path, falling back to defaults when the
// file is missing or unreadable.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
