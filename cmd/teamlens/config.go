package main

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// CatalogSourceConfig names one remote skill catalog.
type CatalogSourceConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// CatalogConfig configures the remote skill catalog.
type CatalogConfig struct {
	TTL     time.Duration         `mapstructure:"ttl"`
	Sources []CatalogSourceConfig `mapstructure:"sources"`
}

// ProfileConfig is a named set of overrides applied on top of the base
// configuration.
type ProfileConfig struct {
	TeamDir    string `mapstructure:"team_dir"`
	GitHubRepo string `mapstructure:"github_repo"`
	LogLevel   string `mapstructure:"log_level"`
}

// Config is the full application configuration, loaded from flags,
// environment variables, and the optional YAML config file.
type Config struct {
	TeamDir     string                   `mapstructure:"team_dir"`
	LogLevel    string                   `mapstructure:"log_level"`
	LogFormat   string                   `mapstructure:"log_format"`
	Quiet       bool                     `mapstructure:"quiet"`
	GitHubRepo  string                   `mapstructure:"github_repo"`
	GitHubToken string                   `mapstructure:"github_token"`
	Catalog     CatalogConfig            `mapstructure:"catalog"`
	Profiles    map[string]ProfileConfig `mapstructure:"profiles"`
}

// GetConfigFromViper loads the configuration and applies the active profile
// if one is selected.
func GetConfigFromViper() (Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if config.Profiles != nil {
		delete(config.Profiles, "default")
	}

	profileName := getActiveProfile()
	if profileName != "" && config.Profiles != nil {
		if profile, exists := config.Profiles[profileName]; exists {
			if err := applyProfile(&config, profile); err != nil {
				return config, err
			}
		} else {
			return config, errors.Errorf("profile %q not found in configuration", profileName)
		}
	}

	return config, nil
}

func getActiveProfile() string {
	profile := viper.GetString("profile")
	if profile == "default" {
		return ""
	}
	return profile
}

// applyProfile merges non-zero profile values onto the base configuration.
func applyProfile(config *Config, profile ProfileConfig) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}

	if err := decoder.Decode(profile); err != nil {
		return errors.Wrap(err, "failed to apply profile")
	}

	return nil
}
