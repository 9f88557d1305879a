package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/gitlab-ls/errors"
)

// ProjectConfigName is searched for from the working directory upward.
const ProjectConfigName = ".gitlab-ls.toml"

// Load reads configuration from defaults, config files and the environment.
func Load() (*Config, error) {
	cfg, _, err := LoadWithSources()
	return cfg, err
}

// LoadWithSources is Load that also reports the config files that were merged,
// lowest precedence first.
func LoadWithSources() (*Config, []string, error) {
	v, files := NewViper()
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, files, nil
}

// NewViper builds a Viper instance with defaults, merged files and env binding.
func NewViper() (*viper.Viper, []string) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindSensitiveEnvVars(v)

	SetDefaults(v)
	files := mergeConfigFiles(v, ConfigPaths())
	return v, files
}

// LoadWithViper unmarshals and validates configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.Mark(err, errors.ErrConfig), "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(errors.Mark(err, errors.ErrConfig), "failed to read config file %s", path)
	}
	return LoadWithViper(v)
}

// ConfigPaths lists candidate config files, lowest precedence first:
// system, user, then the nearest project file.
func ConfigPaths() []string {
	paths := []string{"/etc/gitlab-ls/config.toml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "gitlab-ls", "config.toml"))
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, project)
	}
	return paths
}

// findProjectConfig walks up from the working directory looking for ProjectConfigName.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges every existing file in order and returns the ones read.
func mergeConfigFiles(v *viper.Viper, paths []string) []string {
	var merged []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.MergeInConfig(); err != nil {
			continue
		}
		merged = append(merged, path)
	}
	return merged
}
