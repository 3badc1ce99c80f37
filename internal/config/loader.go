package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nimbuslabs/nimbus/internal/errors"
)

const (
	// ConfigFileName is the project config file name.
	ConfigFileName = ".nimbus.yaml"
	// GlobalConfigDir is the directory for the per-user config.
	GlobalConfigDir = ".config/nimbus"
	// GlobalConfigFile is the per-user config file name.
	GlobalConfigFile = "config.yaml"
)

// Load reads the project config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Project config file not found",
				"Run this command inside an application checkout, or create "+ConfigFileName)
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read project config file",
			"Check the file exists and is valid YAML")
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	return cfg, nil
}

// Find locates the project config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .nimbus.yaml in current directory
// 3. .nimbus.yaml in parent directories (stops at git root or home)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	// Walk up to parent directories
	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		if home != "" && parent == home {
			// Don't go above home directory
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Stop at git root
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break
		}
	}

	return "", nil
}

// LoadProject finds and loads the project config, failing if none exists.
// The returned home is the directory containing the config file (the
// application home, where docker-compose runs).
func LoadProject(explicit string) (cfg *Config, home string, err error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return nil, "", errors.New(errors.ErrConfig,
			"No "+ConfigFileName+" found",
			"Run this command inside an application checkout")
	}

	cfg, err = Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, filepath.Dir(path), nil
}

// ServiceForPrefix resolves a service prefix to its config entry.
func (c *Config) ServiceForPrefix(prefix string) (Service, error) {
	svc, ok := c.Services[prefix]
	if !ok {
		return Service{}, errors.New(errors.ErrConfig,
			"Unknown service prefix '"+prefix+"'",
			"Check the services section of "+ConfigFileName)
	}
	return svc, nil
}

// globalConfigPath returns the path of the per-user config file.
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine home directory",
			"Set the HOME environment variable")
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile), nil
}

// LoadGlobal reads the per-user config, returning defaults if it doesn't exist.
func LoadGlobal() (*Global, error) {
	path, err := globalConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadGlobalFrom(path)
}

// LoadGlobalFrom reads a per-user config from an explicit path.
// Split out from LoadGlobal so tests don't depend on the real home directory.
func LoadGlobalFrom(path string) (*Global, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return DefaultGlobal(), nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read "+path,
			"Check the file is valid YAML")
	}

	g := DefaultGlobal()
	if err := v.Unmarshal(g); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid global config format",
			"Check the YAML syntax in "+path)
	}
	if g.Endpoint == "" {
		g.Endpoint = DefaultEndpoint
	}
	return g, nil
}

// SaveGlobal writes the per-user config, creating the directory if needed.
func SaveGlobal(g *Global) error {
	path, err := globalConfigPath()
	if err != nil {
		return err
	}
	return SaveGlobalTo(g, path)
}

// SaveGlobalTo writes a per-user config to an explicit path.
func SaveGlobalTo(g *Global, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't create config directory",
			"Check permissions on "+filepath.Dir(path))
	}

	data, err := yaml.Marshal(g)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't serialize config", "")
	}

	// Token lives in this file, keep it private.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write "+path,
			"Check file permissions")
	}
	return nil
}
