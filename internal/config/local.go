package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/credentials"
)

const (
	configDirName  = ".donorbridge"
	configFileName = "config.yaml"
	stateFileName  = "state.json"
	defaultUserID  = "local"
)

// LocalConfig holds configuration loaded from the local config file. It
// serves CLI runs on a workstation where credentials live on disk instead
// of Secrets Manager.
type LocalConfig struct {
	// Providers maps each linked provider to its credential fields.
	Providers map[canonical.Provider]credentials.Fields

	// UserID identifies the local user in record keys and logs.
	UserID string
}

// localConfig represents the local configuration file structure.
type localConfig struct {
	Providers map[string]map[string]string `yaml:"providers"`
	UserID    string                       `yaml:"user_id"`
}

// ConfigDir returns the donorbridge configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigFilePath returns the path to the local config file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// StateFilePath returns the path to the local checkpoint file.
func StateFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFileName), nil
}

// LoadLocal loads configuration from the local config file.
func LoadLocal() (*LocalConfig, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return loadLocalFile(configPath)
}

// loadLocalFile loads and validates a local config file at an explicit path.
func loadLocalFile(configPath string) (*LocalConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s (create it with a providers section)", configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var local localConfig
	if err := yaml.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &LocalConfig{
		Providers: make(map[canonical.Provider]credentials.Fields, len(local.Providers)),
		UserID:    local.UserID,
	}
	if cfg.UserID == "" {
		cfg.UserID = defaultUserID
	}

	for name, fields := range local.Providers {
		provider, err := canonical.ParseProvider(name)
		if err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		cfg.Providers[provider] = credentials.Fields(fields)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LocalConfigExists checks if a local config file exists.
func LocalConfigExists() bool {
	configPath, err := ConfigFilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(configPath)
	return err == nil
}

// ProviderFields returns the credential fields for one linked provider.
func (c *LocalConfig) ProviderFields(provider canonical.Provider) (credentials.Fields, error) {
	fields, ok := c.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s is not configured (add it under providers in the config file)", provider)
	}
	return fields, nil
}

// validate checks that required fields are set.
func (c *LocalConfig) validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("at least one provider is required under providers"))
	}
	for provider, fields := range c.Providers {
		if len(fields) == 0 {
			errs = append(errs, fmt.Errorf("providers.%s has no credential fields", provider))
		}
		for name, value := range fields {
			if value == "" {
				errs = append(errs, fmt.Errorf("providers.%s.%s is empty", provider, name))
			}
		}
	}

	return errors.Join(errs...)
}
