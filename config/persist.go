package config

import (
	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/gitlab-ls/errors"
)

const redacted = "********"

// Redacted returns a copy safe to print: the token is masked.
func (c Config) Redacted() Config {
	if c.GitLab.Token != "" {
		c.GitLab.Token = redacted
	}
	return c
}

// MarshalTOML renders the configuration (token redacted) as TOML.
func (c *Config) MarshalTOML() ([]byte, error) {
	data, err := toml.Marshal(c.Redacted())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return data, nil
}
