// Package config loads engine settings from defaults, an optional
// datachat.yaml, and DATACHAT_* environment overrides.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable the engine reads at runtime.
type Config struct {
	// DataDir is where the metadata database and per-dataset storage live.
	DataDir string `mapstructure:"data_dir"`

	// ContextTurnLimit is how many prior turns are folded into a new run's
	// transcript.
	ContextTurnLimit int `mapstructure:"context_turn_limit"`
	// QueryRowCap is the LIMIT auto-appended to uncapped queries.
	QueryRowCap int `mapstructure:"query_row_cap"`
	// SampleRowCap bounds the sample_rows tool.
	SampleRowCap int `mapstructure:"sample_row_cap"`
	// MaxCycles bounds the orchestration loop before it aborts with a
	// partial answer.
	MaxCycles int `mapstructure:"max_cycles"`
	// TypeInferenceSampleCap bounds how many non-null values are examined
	// per column when inferring its type.
	TypeInferenceSampleCap int `mapstructure:"type_inference_sample_cap"`

	LLM LLMConfig `mapstructure:"llm"`
}

// LLMConfig configures the hosted reasoning provider.
type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// Load reads configuration. A missing config file is fine; missing LLM
// credentials only matter once a chat run starts.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("datachat")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetDefault("data_dir", "data")
	v.SetDefault("context_turn_limit", 3)
	v.SetDefault("query_row_cap", 1000)
	v.SetDefault("sample_row_cap", 50)
	v.SetDefault("max_cycles", 50)
	v.SetDefault("type_inference_sample_cap", 100)
	v.SetDefault("llm.model", "gpt-4o-mini")
	// Empty defaults register the keys so env overrides reach Unmarshal.
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")

	v.SetEnvPrefix("DATACHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without touching disk.
func Default() *Config {
	return &Config{
		DataDir:                "data",
		ContextTurnLimit:       3,
		QueryRowCap:            1000,
		SampleRowCap:           50,
		MaxCycles:              50,
		TypeInferenceSampleCap: 100,
		LLM:                    LLMConfig{Model: "gpt-4o-mini"},
	}
}
