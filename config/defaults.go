package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Reddit stream defaults
	v.SetDefault("reddit.user_agent", "modsieve/1.0")
	v.SetDefault("reddit.requests_per_minute", 60)
	v.SetDefault("reddit.timeout_seconds", 15)

	// Scan loop defaults
	v.SetDefault("scan.interval_seconds", 20)
	v.SetDefault("scan.limit", 120)

	// Scoring defaults
	v.SetDefault("scoring.detox.enabled", true)
	v.SetDefault("scoring.detox.base_url", "http://localhost:8091")
	v.SetDefault("scoring.detox.variant", "unbiased")
	v.SetDefault("scoring.detox.requests_per_minute", 120)
	v.SetDefault("scoring.detox.timeout_seconds", 10)
	v.SetDefault("scoring.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("scoring.openai.requests_per_minute", 60)
	v.SetDefault("scoring.openai.timeout_seconds", 10)
	v.SetDefault("scoring.perspective.base_url", "https://commentanalyzer.googleapis.com/v1alpha1")
	v.SetDefault("scoring.perspective.requests_per_minute", 60)
	v.SetDefault("scoring.perspective.timeout_seconds", 10)

	v.SetDefault("scoring.threshold", 0.9)
	v.SetDefault("scoring.insult_directed", 0.8)
	v.SetDefault("scoring.insult_undirected", 0.92)
	v.SetDefault("scoring.toxicity_directed", 0.85)
	v.SetDefault("scoring.toxicity_undirected", 0.93)
	v.SetDefault("scoring.identity_attack_floor", 0.5)
	v.SetDefault("scoring.borderline_notice", 0.75)
	v.SetDefault("scoring.conf_medium", 0.85)
	v.SetDefault("scoring.conf_high", 0.9)
	v.SetDefault("scoring.conf_very_high", 0.95)

	// Arbiter defaults
	v.SetDefault("arbiter.model", "gemini/gemini-2.0-flash")
	v.SetDefault("arbiter.fallbacks", []string{"gemini/gemini-1.5-flash", "openrouter/openai/gpt-4o-mini"})
	v.SetDefault("arbiter.requests_per_minute", 10)
	v.SetDefault("arbiter.max_retries", 2)
	v.SetDefault("arbiter.short_wait_max", 90) // seconds; longer waits cool the model down
	v.SetDefault("arbiter.guidelines_path", "guidelines.md")
	v.SetDefault("arbiter.parent_max_chars", 500)
	v.SetDefault("arbiter.temperature", 0.2)
	v.SetDefault("arbiter.max_tokens", 400)
	v.SetDefault("arbiter.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("arbiter.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")

	// Policy defaults: reporting on, auto-removal off until explicitly enabled
	v.SetDefault("policy.auto_remove", false)
	v.SetDefault("policy.pattern_auto_remove", false)
	v.SetDefault("policy.quorum", 2)
	v.SetDefault("policy.scorer_minimums", map[string]float64{
		"detox":       0.97,
		"openai":      0.9,
		"perspective": 0.95,
	})

	// Report defaults
	v.SetDefault("report.enabled", true)
	v.SetDefault("report.as", "moderator")
	v.SetDefault("report.reason_template", "modsieve: {verdict} (confidence: {confidence})")

	// Outcome reconciliation defaults
	v.SetDefault("outcome.reconcile_interval_hours", 12)
	v.SetDefault("outcome.jitter_minutes", 5)
	v.SetDefault("outcome.maturation_hours", 12)
	v.SetDefault("outcome.resolved_max_age_days", 90)
	v.SetDefault("outcome.modlog_lookback_days", 14)
	v.SetDefault("outcome.modlog_limit", 100000)
	v.SetDefault("outcome.modlog_delay_ms", 150)
	v.SetDefault("outcome.daily_refresh_hour_utc", 6)

	// Summary defaults
	v.SetDefault("summary.enabled", true)
	v.SetDefault("summary.interval_days", 7)
	v.SetDefault("summary.decision_lag_hours", 12)

	// Notification defaults
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.timeout_seconds", 10)

	// State file defaults
	v.SetDefault("state.scan_log_path", "state/scan_log.jsonl")
	v.SetDefault("state.reported_path", "state/reported.json")
	v.SetDefault("state.benign_path", "state/benign.json")
	v.SetDefault("state.outcomes_path", "state/report_outcomes.jsonl")
	v.SetDefault("state.summary_state_path", "state/summary_state.json")
	v.SetDefault("state.false_positives_path", "state/false_positives.json")
	v.SetDefault("state.benign_max_age_days", 30)

	// Database defaults
	v.SetDefault("database.path", "modsieve.db")
}

// BindSensitiveEnvVars binds credentials to environment variables so they
// never need to live in a config file.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("reddit.client_id", "MODSIEVE_REDDIT_CLIENT_ID")
	v.BindEnv("reddit.client_secret", "MODSIEVE_REDDIT_CLIENT_SECRET")
	v.BindEnv("reddit.username", "MODSIEVE_REDDIT_USERNAME")
	v.BindEnv("reddit.password", "MODSIEVE_REDDIT_PASSWORD")
	v.BindEnv("scoring.openai.api_key", "MODSIEVE_OPENAI_API_KEY")
	v.BindEnv("scoring.perspective.api_key", "MODSIEVE_PERSPECTIVE_API_KEY")
	v.BindEnv("arbiter.openrouter.api_key", "MODSIEVE_OPENROUTER_API_KEY")
	v.BindEnv("arbiter.gemini.api_key", "MODSIEVE_GEMINI_API_KEY")
	v.BindEnv("notify.webhook", "MODSIEVE_DISCORD_WEBHOOK")
	v.BindEnv("notify.summary_webhook", "MODSIEVE_SUMMARY_DISCORD_WEBHOOK")
}
