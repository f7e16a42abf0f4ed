package config

import (
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := ioutil.ReadFile(filepath.Join(path, ConfigurationName))
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	out.configFs = afero.NewBasePathFs(afero.NewOsFs(), path)
	return &out, nil
}

// Initialize writes the default configuration to dir and returns it.
// An existing configuration is left untouched.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	cfg := Default(dir)
	fs := cfg.fs()
	if ok, err := afero.Exists(fs, ConfigurationName); err != nil {
		return nil, err
	} else if ok {
		logger.Printf("Configuration already exists in %s, leaving it alone.", dir)
		return Load(dir)
	}

	logger.Printf("Writing %s to %s", ConfigurationName, dir)
	if err := afero.WriteFile(fs, ConfigurationName, defaultConfigData, 0600); err != nil {
		return nil, err
	}

	return cfg, nil
}
