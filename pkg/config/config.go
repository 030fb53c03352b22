// Package config loads server configuration from file, environment, and
// defaults.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Configuration holds everything the server needs to start.
type Configuration struct {
	// ListenAddr is the local address the JSON API binds to. The server
	// is meant for same-machine clients, so the default stays on
	// loopback.
	ListenAddr string

	// DataDir holds the SQLite databases.
	DataDir string
	// AvatarDir holds normalized avatar images.
	AvatarDir string
	// KeyFile holds the token sealing key.
	KeyFile string

	Avatars struct {
		// LazyTimeoutSeconds bounds a single interactive avatar fetch.
		LazyTimeoutSeconds int
		// BulkTimeoutSeconds bounds each fetch inside a bulk run.
		BulkTimeoutSeconds int
	}

	Log struct {
		Level string
	}
}

// Load reads configuration from pluralchat.yaml (working directory or
// ~/.config/pluralchat), overlaid with PLURALCHAT_* environment variables,
// on top of built-in defaults. A missing config file is not an error.
func Load() (*Configuration, error) {
	v := viper.New()
	v.SetConfigName("pluralchat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pluralchat"))
	}
	v.SetEnvPrefix("pluralchat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir := defaultDataDir()
	v.SetDefault("listenaddr", "127.0.0.1:8220")
	v.SetDefault("datadir", dataDir)
	v.SetDefault("avatardir", filepath.Join(dataDir, "avatars"))
	v.SetDefault("keyfile", filepath.Join(dataDir, "seal.key"))
	v.SetDefault("avatars.lazytimeoutseconds", 10)
	v.SetDefault("avatars.bulktimeoutseconds", 30)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SystemDBPath returns the path of the member and message database.
func (c *Configuration) SystemDBPath() string {
	return filepath.Join(c.DataDir, "system.db")
}

// AppDBPath returns the path of the settings and token database.
func (c *Configuration) AppDBPath() string {
	return filepath.Join(c.DataDir, "app.db")
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "pluralchat")
	}
	return "pluralchat-data"
}
