package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultRegistryURL is the hosted package registry.
	DefaultRegistryURL = "https://finn-registry.pages.dev"
	// SettingsFileName is the per-user settings file inside ~/.finn.
	SettingsFileName = "config.toml"

	globalDirName = ".finn"
	envPrefix     = "FINN"
)

// Settings holds per-user configuration. It is resolved with Viper
// precedence: manifest override > FINN_* environment > ~/.finn/config.toml
// > built-in defaults.
type Settings struct {
	RegistryURL string `toml:"registry_url" mapstructure:"registry_url"`
	CacheDir    string `toml:"cache_dir" mapstructure:"cache_dir"`
}

// LoadSettings resolves user settings. registryOverride, if non-empty,
// comes from the project manifest's [registry] table and wins over
// everything else.
func LoadSettings(registryOverride string) (*Settings, error) {
	dir, err := globalDir()
	if err != nil {
		return nil, err
	}
	return loadSettings(registryOverride, filepath.Join(dir, SettingsFileName), filepath.Join(dir, "cache", "registry"))
}

// loadSettings is the internal implementation that accepts explicit paths,
// making it testable without touching the real home directory.
func loadSettings(registryOverride, globalPath, defaultCacheDir string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault("registry_url", DefaultRegistryURL)
	v.SetDefault("cache_dir", defaultCacheDir)

	if _, err := os.Stat(globalPath); err == nil {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", globalPath, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if registryOverride != "" {
		v.Set("registry_url", registryOverride)
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return s, nil
}

func globalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, globalDirName), nil
}
