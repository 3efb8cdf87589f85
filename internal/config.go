package internal

import (
	"fmt"
	"path/filepath"

	"github.com/hbomb79/Reel/internal/api"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/hbomb79/Reel/internal/importer"
	"github.com/hbomb79/Reel/internal/ingest"
	"github.com/hbomb79/Reel/internal/probe"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

const DefaultConfigPath = "~/.config/reel/config.yaml"

// ReelConfig is the struct used to contain the
// various user config supplied by file, or
// by environment variables.
type ReelConfig struct {
	Database database.DatabaseConfig `yaml:"database" env-required:"true"`
	Importer importer.Config         `yaml:"importer"`
	Ingest   ingest.Config           `yaml:"ingest"`
	Probe    probe.Config            `yaml:"probe"`
	Api      api.RestConfig          `yaml:"api"`
	LogLevel string                  `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// LoadConfig loads a configuration file formatted in YAML in to a
// ReelConfig. If the path is empty, the configuration is read solely from
// the environment. Paths inside the configuration have '~' expanded.
func LoadConfig(configPath string) (*ReelConfig, error) {
	config := &ReelConfig{Importer: importer.Config{Matching: importer.DefaultMatchingConfig()}}
	if configPath == "" {
		if err := cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
		}
	} else {
		path, err := homedir.Expand(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand configuration path %s: %w", configPath, err)
		}

		if err := cleanenv.ReadConfig(path, config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
		}
	}

	if err := config.expandPaths(); err != nil {
		return nil, err
	}

	return config, nil
}

func (config *ReelConfig) expandPaths() error {
	for i, path := range config.Ingest.IngestPaths {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("failed to expand ingest path %s: %w", path, err)
		}
		config.Ingest.IngestPaths[i] = filepath.Clean(expanded)
	}

	if config.Probe.FfprobeBinaryPath != "" {
		expanded, err := homedir.Expand(config.Probe.FfprobeBinaryPath)
		if err != nil {
			return fmt.Errorf("failed to expand ffprobe path %s: %w", config.Probe.FfprobeBinaryPath, err)
		}
		config.Probe.FfprobeBinaryPath = expanded
	}

	return nil
}
