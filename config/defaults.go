package config

import "github.com/spf13/viper"

const (
	DefaultBaseURL       = "https://gitlab.com/api/v4"
	DefaultTTLSeconds    = 60
	DefaultMaxCandidates = 50
	DefaultMaxDocuments  = 100

	// EnvPrefix is prepended to every key when read from the environment,
	// e.g. GITLAB_LS_CACHE_TTL_SECONDS.
	EnvPrefix = "GITLAB_LS"

	// TokenEnvVar is the conventional GitLab token variable, honoured in
	// addition to GITLAB_LS_GITLAB_TOKEN.
	TokenEnvVar = "GITLAB_API_PRIVATE_TOKEN"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gitlab.base_url", DefaultBaseURL)
	v.SetDefault("gitlab.token", "")
	v.SetDefault("gitlab.per_page", 100)
	v.SetDefault("gitlab.max_pages", 10)
	v.SetDefault("gitlab.requests_per_second", 5.0)
	v.SetDefault("gitlab.burst", 5)
	v.SetDefault("gitlab.timeout_seconds", 10)
	v.SetDefault("gitlab.include_expired_milestones", false)
	v.SetDefault("gitlab.block_private_ips", false) // self-hosted instances usually live on private networks

	v.SetDefault("cache.ttl_seconds", DefaultTTLSeconds)
	v.SetDefault("cache.fetch_timeout_seconds", 15)
	v.SetDefault("cache.failure_cooldown_seconds", 5)

	v.SetDefault("completion.max_candidates", DefaultMaxCandidates)
	v.SetDefault("completion.quick_action_snippets", true)

	v.SetDefault("documents.max_open", DefaultMaxDocuments)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.json", false)
}

// BindSensitiveEnvVars explicitly binds secrets to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("gitlab.token", EnvPrefix+"_GITLAB_TOKEN", TokenEnvVar)
}
