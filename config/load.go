package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/modsieve/modsieve/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the modsieve configuration using Viper.
// Precedence: defaults < config file < MODSIEVE_* environment variables.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &cfg, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("MODSIEVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)

	// Optional config file: ./modsieve.toml or $MODSIEVE_CONFIG
	if path := os.Getenv("MODSIEVE_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		_ = v.ReadInConfig()
	} else {
		v.SetConfigName("modsieve")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		_ = v.ReadInConfig()
	}

	viperInstance = v
	return v
}

// Validate fails fast on configuration the pipeline cannot start without.
// Only credential and file-existence problems are fatal; everything else has
// a usable default.
func (c *Config) Validate() error {
	if len(c.Reddit.Subreddits) == 0 {
		return errors.Wrap(errors.ErrInvalidConfig, "reddit.subreddits must list at least one subreddit")
	}
	if c.Reddit.ClientID == "" || c.Reddit.ClientSecret == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "reddit credentials missing (client_id/client_secret)")
	}
	if c.Arbiter.GuidelinesPath == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "arbiter.guidelines_path is required")
	}
	if _, err := os.Stat(c.Arbiter.GuidelinesPath); err != nil {
		return errors.Wrapf(errors.ErrInvalidConfig, "guidelines file not readable: %s", c.Arbiter.GuidelinesPath)
	}
	if c.Arbiter.OpenRouter.APIKey == "" && c.Arbiter.Gemini.APIKey == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "no arbiter backend configured (need an openrouter or gemini API key)")
	}
	if c.Policy.Quorum < 1 {
		return errors.Wrap(errors.ErrInvalidConfig, "policy.quorum must be >= 1")
	}

	switch c.Report.As {
	case "moderator", "user", "none":
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "report.as must be moderator|user|none, got %q", c.Report.As)
	}

	for _, mode := range []ScorerMode{c.Scoring.OpenAI.Mode, c.Scoring.Perspective.Mode} {
		switch mode {
		case "", ModeAll, ModeConfirm, ModeOnly:
		default:
			return errors.Wrapf(errors.ErrInvalidConfig, "scorer mode must be all|confirm|only, got %q", mode)
		}
	}

	return nil
}
