package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// config is the bound process configuration of SPEC_FULL.md §6: the
// registry base URL, the dev-time source override for built-in packages,
// and the cache root, each read from an environment variable or an
// optional ~/.horus/config.yaml (the environment variable wins). No
// command flag is bound to these settings.
type config struct {
	RegistryURL string
	Source      string
	Home        string
}

// defaultRegistryURL is used when neither an env var nor the config file
// sets one.
const defaultRegistryURL = "https://registry.horus.dev"

// loadConfig binds HORUS_REGISTRY_URL, HORUS_SOURCE, and HOME via viper,
// reading an optional ~/.horus/config.yaml if present, per SPEC_FULL.md
// §6's cobra+viper CLI framework section.
func loadConfig() *config {
	v := viper.New()
	v.SetEnvPrefix("HORUS")
	v.AutomaticEnv()
	v.SetDefault("registry_url", defaultRegistryURL)

	if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(home, ".horus"))
		_ = v.ReadInConfig() // a missing config file is not an error
	}

	home := v.GetString("home")
	if home == "" {
		home, _ = os.UserHomeDir()
	}

	return &config{
		RegistryURL: v.GetString("registry_url"),
		Source:      v.GetString("source"),
		Home:        home,
	}
}

// cacheRoot returns the global cache root under the configured home,
// falling back to cache.DefaultRoot's own temp-dir fallback when home is
// unknown.
func (c *config) cacheRoot() string {
	if c.Home == "" {
		return ""
	}
	return filepath.Join(c.Home, ".horus", "cache")
}
