// Package config handles loading and managing zapvault configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/zapvault/zapvault/internal/page"
)

// Config represents the zapvault configuration.
type Config struct {
	Data   DataConfig   `toml:"data"`
	Viewer ViewerConfig `toml:"viewer"`
	Server ServerConfig `toml:"server"`
	Remote RemoteConfig `toml:"remote"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DataConfig locates the backup inputs.
type DataConfig struct {
	BackupDB string `toml:"backup_db"` // path to the exported messages database
	MediaDir string `toml:"media_dir"` // folder with the backup's attachment files
}

// ViewerConfig tunes the browsing experience.
type ViewerConfig struct {
	BatchSize int `toml:"batch_size"` // messages fetched per pagination step
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	BindAddr        string   `toml:"bind_addr"` // default 127.0.0.1
	Port            int      `toml:"port"`      // default 8471
	APIKey          string   `toml:"api_key"`   // optional shared key
	CORSOrigins     []string `toml:"cors_origins"`
	CORSCredentials bool     `toml:"cors_credentials"`
	CORSMaxAge      int      `toml:"cors_max_age"`
}

// RemoteConfig points commands at a zapvault server instead of a local file.
type RemoteConfig struct {
	URL           string `toml:"url"`
	APIKey        string `toml:"api_key"`
	AllowInsecure bool   `toml:"allow_insecure"`
}

// DefaultHome returns the default zapvault home directory.
// Respects the ZAPVAULT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("ZAPVAULT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zapvault"
	}
	return filepath.Join(home, ".zapvault")
}

// Load reads the configuration from the specified file. If path is empty,
// uses <home>/config.toml; if home is empty, uses DefaultHome. The config
// file is optional — defaults apply when it does not exist.
func Load(path, home string) (*Config, error) {
	if home == "" {
		home = DefaultHome()
	}
	if path == "" {
		path = filepath.Join(home, "config.toml")
	}

	cfg := &Config{
		HomeDir: home,
		Data: DataConfig{
			BackupDB: filepath.Join(home, "whatsapp_chats.db"),
			MediaDir: filepath.Join(home, "anexos"),
		},
		Viewer: ViewerConfig{
			BatchSize: page.DefaultBatch,
		},
		Server: ServerConfig{
			BindAddr: "127.0.0.1",
			Port:     8471,
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.BackupDB = expandPath(cfg.Data.BackupDB)
	cfg.Data.MediaDir = expandPath(cfg.Data.MediaDir)
	if cfg.Viewer.BatchSize <= 0 {
		cfg.Viewer.BatchSize = page.DefaultBatch
	}

	return cfg, nil
}

// ConfigFilePath returns the path the config is loaded from.
func (c *Config) ConfigFilePath() string {
	return filepath.Join(c.HomeDir, "config.toml")
}

// EnsureHomeDir creates the home directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.HomeDir, 0o755)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
