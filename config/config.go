// Package config loads gitlab-ls settings from TOML files, the environment and flags.
package config

import "time"

// Config is the process-wide configuration. Per-session values supplied by
// the editor at initialize time (project, cache TTL) override it.
type Config struct {
	GitLab     GitLabConfig     `mapstructure:"gitlab" toml:"gitlab"`
	Cache      CacheConfig      `mapstructure:"cache" toml:"cache"`
	Completion CompletionConfig `mapstructure:"completion" toml:"completion"`
	Documents  DocumentsConfig  `mapstructure:"documents" toml:"documents"`
	Metrics    MetricsConfig    `mapstructure:"metrics" toml:"metrics"`
	Log        LogConfig        `mapstructure:"log" toml:"log"`
}

// GitLabConfig configures the REST client.
type GitLabConfig struct {
	BaseURL           string  `mapstructure:"base_url" toml:"base_url"`
	Token             string  `mapstructure:"token" toml:"token"`
	PerPage           int     `mapstructure:"per_page" toml:"per_page"`
	MaxPages          int     `mapstructure:"max_pages" toml:"max_pages"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" toml:"burst"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	BlockPrivateIPs   bool    `mapstructure:"block_private_ips" toml:"block_private_ips"`

	// IncludeExpiredMilestones keeps milestones whose due date has passed.
	IncludeExpiredMilestones bool `mapstructure:"include_expired_milestones" toml:"include_expired_milestones"`
}

// CacheConfig configures the resource cache.
type CacheConfig struct {
	TTLSeconds             int `mapstructure:"ttl_seconds" toml:"ttl_seconds"`
	FetchTimeoutSeconds    int `mapstructure:"fetch_timeout_seconds" toml:"fetch_timeout_seconds"`
	FailureCooldownSeconds int `mapstructure:"failure_cooldown_seconds" toml:"failure_cooldown_seconds"` // 0 disables
}

// CompletionConfig configures ranking output.
type CompletionConfig struct {
	MaxCandidates       int  `mapstructure:"max_candidates" toml:"max_candidates"`
	QuickActionSnippets bool `mapstructure:"quick_action_snippets" toml:"quick_action_snippets"`
}

// DocumentsConfig bounds the document store.
type DocumentsConfig struct {
	MaxOpen int `mapstructure:"max_open" toml:"max_open"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" toml:"addr"`
}

// LogConfig selects the log encoder.
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json"`
}

// TTL returns the cache freshness window.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// FetchTimeout bounds a single background or synchronous fetch.
func (c CacheConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// FailureCooldown is how long a failed fetch is remembered before retrying.
func (c CacheConfig) FailureCooldown() time.Duration {
	return time.Duration(c.FailureCooldownSeconds) * time.Second
}

// Timeout is the per-request HTTP timeout.
func (c GitLabConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
