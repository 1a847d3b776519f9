package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the project manifest filename. Installed packages
// may carry one too; its [packages] table declares their dependencies.
const ManifestFileName = "finn.toml"

const (
	DefaultVersion    = "0.1.0"
	DefaultEnvPath    = ".finn"
	DefaultEntrypoint = "main.fin"
)

type Config struct {
	Project ProjectConfig `toml:"project"`
	// Packages maps package name to a reference: a URL, a local path,
	// an owner/repo shorthand or a registry name, optionally "@version".
	Packages map[string]string `toml:"packages,omitempty"`
	Scripts  map[string]string `toml:"scripts,omitempty"`
	Registry *RegistryConfig   `toml:"registry,omitempty"`
}

type ProjectConfig struct {
	Name       string `toml:"name"`
	Version    string `toml:"version"`
	EnvPath    string `toml:"envpath"`
	Entrypoint string `toml:"entrypoint,omitempty"`
}

type RegistryConfig struct {
	URL string `toml:"url"`
}

// Default returns the manifest written by `finn init`.
func Default(name string) *Config {
	return &Config{
		Project: ProjectConfig{
			Name:       name,
			Version:    DefaultVersion,
			EnvPath:    DefaultEnvPath,
			Entrypoint: DefaultEntrypoint,
		},
		Packages: map[string]string{},
		Scripts:  map[string]string{},
	}
}

// RegistryURL returns the manifest's registry override, or "".
func (c *Config) RegistryURL() string {
	if c.Registry == nil {
		return ""
	}
	return c.Registry.URL
}

// EnvPath returns the environment directory, falling back to the default
// for manifests that omit it.
func (c *Config) EnvPath() string {
	if c.Project.EnvPath == "" {
		return DefaultEnvPath
	}
	return c.Project.EnvPath
}

func UnmarshalConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	err := toml.Unmarshal(data, cfg)

	return cfg, err
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := UnmarshalConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func SaveFile(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
