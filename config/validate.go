package config

import (
	"net/url"

	"github.com/teranos/gitlab-ls/errors"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.GitLab.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewConfigError("gitlab.base_url must be an absolute URL, got %q", c.GitLab.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewConfigError("gitlab.base_url must use http or https, got %q", u.Scheme)
	}
	if c.GitLab.PerPage < 1 || c.GitLab.PerPage > 100 {
		return errors.NewConfigError("gitlab.per_page must be between 1 and 100, got %d", c.GitLab.PerPage)
	}
	if c.GitLab.MaxPages < 1 {
		return errors.NewConfigError("gitlab.max_pages must be >= 1, got %d", c.GitLab.MaxPages)
	}
	// 0 = unlimited
	if c.GitLab.RequestsPerSecond < 0 {
		return errors.NewConfigError("gitlab.requests_per_second must be >= 0, got %f", c.GitLab.RequestsPerSecond)
	}
	if c.GitLab.RequestsPerSecond > 0 && c.GitLab.Burst < 1 {
		return errors.NewConfigError("gitlab.burst must be >= 1 when rate limited, got %d", c.GitLab.Burst)
	}
	if c.GitLab.TimeoutSeconds <= 0 {
		return errors.NewConfigError("gitlab.timeout_seconds must be > 0, got %d", c.GitLab.TimeoutSeconds)
	}

	if c.Cache.TTLSeconds < 1 {
		return errors.NewConfigError("cache.ttl_seconds must be >= 1, got %d", c.Cache.TTLSeconds)
	}
	if c.Cache.FetchTimeoutSeconds <= 0 {
		return errors.NewConfigError("cache.fetch_timeout_seconds must be > 0, got %d", c.Cache.FetchTimeoutSeconds)
	}
	if c.Cache.FailureCooldownSeconds < 0 {
		return errors.NewConfigError("cache.failure_cooldown_seconds must be >= 0, got %d", c.Cache.FailureCooldownSeconds)
	}

	if c.Completion.MaxCandidates < 1 {
		return errors.NewConfigError("completion.max_candidates must be >= 1, got %d", c.Completion.MaxCandidates)
	}
	if c.Documents.MaxOpen < 1 {
		return errors.NewConfigError("documents.max_open must be >= 1, got %d", c.Documents.MaxOpen)
	}
	return nil
}
