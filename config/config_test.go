package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func validConfig(t *testing.T) *Config {
	cfg := defaultConfig(t)
	cfg.Reddit.Subreddits = []string{"ufos"}
	cfg.Reddit.ClientID = "id"
	cfg.Reddit.ClientSecret = "secret"
	cfg.Arbiter.Gemini.APIKey = "key"

	guidelines := filepath.Join(t.TempDir(), "guidelines.md")
	require.NoError(t, os.WriteFile(guidelines, []byte("be nice"), 0o644))
	cfg.Arbiter.GuidelinesPath = guidelines
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, 0.9, cfg.Scoring.Threshold)
	assert.Equal(t, 2, cfg.Policy.Quorum)
	assert.False(t, cfg.Policy.AutoRemove)
	assert.Equal(t, 12, cfg.Outcome.MaturationHours)
	assert.Equal(t, 7, cfg.Summary.IntervalDays)
	assert.Equal(t, "moderator", cfg.Report.As)
	assert.NotEmpty(t, cfg.Arbiter.Fallbacks)
	assert.Contains(t, cfg.Policy.ScorerMinimums, "detox")
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	cfg := validConfig(t)
	cfg.Reddit.ClientSecret = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingSubreddits(t *testing.T) {
	cfg := validConfig(t)
	cfg.Reddit.Subreddits = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingGuidelines(t *testing.T) {
	cfg := validConfig(t)
	cfg.Arbiter.GuidelinesPath = filepath.Join(t.TempDir(), "does_not_exist.md")
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNoArbiterBackend(t *testing.T) {
	cfg := validConfig(t)
	cfg.Arbiter.Gemini.APIKey = ""
	cfg.Arbiter.OpenRouter.APIKey = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadScorerMode(t *testing.T) {
	cfg := validConfig(t)
	cfg.Scoring.Perspective.Mode = "sometimes"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadReportAs(t *testing.T) {
	cfg := validConfig(t)
	cfg.Report.As = "admin"
	assert.Error(t, cfg.Validate())
}
