// Package config loads the modsieve configuration from TOML files and
// MODSIEVE_-prefixed environment variables via Viper.
package config

// Config is the root modsieve configuration.
type Config struct {
	Reddit   RedditConfig   `mapstructure:"reddit"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Arbiter  ArbiterConfig  `mapstructure:"arbiter"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Report   ReportConfig   `mapstructure:"report"`
	Outcome  OutcomeConfig  `mapstructure:"outcome"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	State    StateConfig    `mapstructure:"state"`
	Database DatabaseConfig `mapstructure:"database"`

	// DryRun computes and logs every decision but performs no report/remove call
	DryRun bool `mapstructure:"dry_run"`
	// LogJSON switches structured JSON log output (default: console)
	LogJSON bool `mapstructure:"log_json"`
}

// RedditConfig configures the comment stream source and moderation actuator.
type RedditConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	UserAgent    string   `mapstructure:"user_agent"`
	Subreddits   []string `mapstructure:"subreddits"`

	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	TimeoutSeconds    int `mapstructure:"timeout_seconds"`
}

// ScanConfig configures the foreground scan loop.
type ScanConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"` // polite budget spread across Limit items
	Limit           int `mapstructure:"limit"`            // max items fetched per poll
}

// ScoringConfig configures the ML scorers and threshold tables.
type ScoringConfig struct {
	Detox       DetoxConfig       `mapstructure:"detox"`
	OpenAI      OpenAIModConfig   `mapstructure:"openai"`
	Perspective PerspectiveConfig `mapstructure:"perspective"`

	// Base threshold applied to labels without a specific override
	Threshold float64 `mapstructure:"threshold"`
	// Directed/undirected threshold pairs for insult and toxicity labels
	InsultDirected      float64 `mapstructure:"insult_directed"`
	InsultUndirected    float64 `mapstructure:"insult_undirected"`
	ToxicityDirected    float64 `mapstructure:"toxicity_directed"`
	ToxicityUndirected  float64 `mapstructure:"toxicity_undirected"`
	IdentityAttackFloor float64 `mapstructure:"identity_attack_floor"` // secondary floor for ambiguous-term escalation

	// Borderline near-miss logging level (below-threshold scores >= this are logged)
	BorderlineNotice float64 `mapstructure:"borderline_notice"`

	// Confidence bucket cut points for scan logging and report reasons
	ConfMedium   float64 `mapstructure:"conf_medium"`
	ConfHigh     float64 `mapstructure:"conf_high"`
	ConfVeryHigh float64 `mapstructure:"conf_very_high"`
}

// ScorerMode controls when an optional external scorer is called.
type ScorerMode string

const (
	// ModeAll calls the scorer on every item
	ModeAll ScorerMode = "all"
	// ModeConfirm calls the scorer only when the local scorer already fired
	// (or the local scorer is unavailable)
	ModeConfirm ScorerMode = "confirm"
	// ModeOnly substitutes the scorer for the local one entirely
	ModeOnly ScorerMode = "only"
)

// DetoxConfig configures the local detoxify-style toxicity scorer.
type DetoxConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	BaseURL           string `mapstructure:"base_url"` // local HTTP inference server
	Variant           string `mapstructure:"variant"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
}

// OpenAIModConfig configures the OpenAI moderation endpoint scorer.
type OpenAIModConfig struct {
	Mode              ScorerMode `mapstructure:"mode"` // all | confirm | only; empty = disabled
	APIKey            string     `mapstructure:"api_key"`
	BaseURL           string     `mapstructure:"base_url"`
	RequestsPerMinute int        `mapstructure:"requests_per_minute"`
	TimeoutSeconds    int        `mapstructure:"timeout_seconds"`
}

// PerspectiveConfig configures the Perspective API scorer.
type PerspectiveConfig struct {
	Mode              ScorerMode `mapstructure:"mode"`
	APIKey            string     `mapstructure:"api_key"`
	BaseURL           string     `mapstructure:"base_url"`
	RequestsPerMinute int        `mapstructure:"requests_per_minute"`
	TimeoutSeconds    int        `mapstructure:"timeout_seconds"`
}

// ArbiterConfig configures the LLM arbiter and its model chain.
type ArbiterConfig struct {
	Model             string   `mapstructure:"model"`     // primary model
	Fallbacks         []string `mapstructure:"fallbacks"` // ordered fallback chain
	RequestsPerMinute int      `mapstructure:"requests_per_minute"`
	MaxRetries        int      `mapstructure:"max_retries"`      // same-model retries on short rate-limit waits
	ShortWaitSeconds  int      `mapstructure:"short_wait_max"`   // waits above this put the model on cooldown instead
	GuidelinesPath    string   `mapstructure:"guidelines_path"`  // system prompt file; required
	ParentMaxChars    int      `mapstructure:"parent_max_chars"` // parent context truncation

	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   *int     `mapstructure:"max_tokens"`

	OpenRouter BackendConfig `mapstructure:"openrouter"`
	Gemini     BackendConfig `mapstructure:"gemini"`
}

// BackendConfig holds credentials for one LLM backend.
type BackendConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// PolicyConfig configures the consensus/action policy.
type PolicyConfig struct {
	AutoRemove        bool               `mapstructure:"auto_remove"`         // master switch for removals
	PatternAutoRemove bool               `mapstructure:"pattern_auto_remove"` // remove immediately on deterministic pattern matches
	Quorum            int                `mapstructure:"quorum"`              // scorers that must independently agree
	ScorerMinimums    map[string]float64 `mapstructure:"scorer_minimums"`     // scorer prefix -> auto-remove minimum score
}

// ReportConfig configures how reports are filed.
type ReportConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	As             string `mapstructure:"as"` // moderator | user | none
	ReasonTemplate string `mapstructure:"reason_template"`
	RuleBucket     string `mapstructure:"rule_bucket"`
}

// OutcomeConfig configures outcome reconciliation.
type OutcomeConfig struct {
	ReconcileIntervalHours int `mapstructure:"reconcile_interval_hours"`
	JitterMinutes          int `mapstructure:"jitter_minutes"`
	MaturationHours        int `mapstructure:"maturation_hours"`     // min age before judging a report
	ResolvedMaxAgeDays     int `mapstructure:"resolved_max_age_days"`
	ModlogLookbackDays     int `mapstructure:"modlog_lookback_days"`
	ModlogLimit            int `mapstructure:"modlog_limit"`
	ModlogDelayMs          int `mapstructure:"modlog_delay_ms"`
	DailyRefreshHourUTC    int `mapstructure:"daily_refresh_hour_utc"`
}

// SummaryConfig configures periodic summary reporting.
type SummaryConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	IntervalDays     int  `mapstructure:"interval_days"`
	DecisionLagHours int  `mapstructure:"decision_lag_hours"`
}

// NotifyConfig configures the notification sink.
type NotifyConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Webhook        string `mapstructure:"webhook"`         // per-item notifications
	SummaryWebhook string `mapstructure:"summary_webhook"` // periodic summaries
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StateConfig configures persisted state file locations.
type StateConfig struct {
	ScanLogPath        string `mapstructure:"scan_log_path"`
	ReportedPath       string `mapstructure:"reported_path"`
	BenignPath         string `mapstructure:"benign_path"`
	OutcomesPath       string `mapstructure:"outcomes_path"`
	SummaryStatePath   string `mapstructure:"summary_state_path"`
	FalsePositivesPath string `mapstructure:"false_positives_path"`
	BenignMaxAgeDays   int    `mapstructure:"benign_max_age_days"`
}

// DatabaseConfig configures the SQLite usage-ledger database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}
