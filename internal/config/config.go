package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	DefaultHTTPPort          = 3929
	DefaultRelayPort         = 3930
	DefaultExecTimeoutSecs   = 600
	DefaultMaxOutputBytes    = 128 * 1024
	DefaultRelayTimeoutSecs  = 30
	DefaultMaxShellSessions  = 10
	DefaultHTTPReadTimeoutMs = 5000
)

// Config is the on-disk agent configuration, stored as TOML at
// ~/.screencontrol/config.toml.
type Config struct {
	HTTPPort           int    `toml:"http_port"`
	RelayPort          int    `toml:"relay_port"`
	APIKey             string `toml:"api_key"`
	ExecTimeoutSeconds int    `toml:"exec_timeout_seconds"`
	MaxOutputBytes     int    `toml:"max_output_bytes"`
	RelayTimeoutSecs   int    `toml:"relay_timeout_seconds"`
	MaxShellSessions   int    `toml:"max_shell_sessions"`
	EnableLogging      bool   `toml:"enable_logging"`
	LogFile            string `toml:"log_file"`
}

func Default() *Config {
	return &Config{
		HTTPPort:           DefaultHTTPPort,
		RelayPort:          DefaultRelayPort,
		ExecTimeoutSeconds: DefaultExecTimeoutSecs,
		MaxOutputBytes:     DefaultMaxOutputBytes,
		RelayTimeoutSecs:   DefaultRelayTimeoutSecs,
		MaxShellSessions:   DefaultMaxShellSessions,
		EnableLogging:      true,
	}
}

// Dir returns the agent's configuration directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(homeDir, ".screencontrol")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the configuration from disk. A missing file yields defaults
// with a freshly generated API key, persisted immediately so subsequent
// clients agree on the key.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.APIKey = GenerateAPIKey()
			if saveErr := cfg.saveTo(path); saveErr != nil {
				return nil, saveErr
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(cfg)

	if cfg.APIKey == "" {
		cfg.APIKey = GenerateAPIKey()
		if err := cfg.saveTo(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.RelayPort == 0 {
		cfg.RelayPort = DefaultRelayPort
	}
	if cfg.ExecTimeoutSeconds <= 0 {
		cfg.ExecTimeoutSeconds = DefaultExecTimeoutSecs
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if cfg.RelayTimeoutSecs <= 0 {
		cfg.RelayTimeoutSecs = DefaultRelayTimeoutSecs
	}
	if cfg.MaxShellSessions <= 0 {
		cfg.MaxShellSessions = DefaultMaxShellSessions
	}
}

// Save writes the configuration to its default path. The file holds the API
// key, so it is not group or world readable.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.saveTo(path)
}

func (c *Config) saveTo(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GenerateAPIKey returns a fresh 32-hex-char bearer key.
func GenerateAPIKey() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}
