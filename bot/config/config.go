// Package config holds the application configuration: the reusable core
// settings plus storage and relay behaviour.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	coredatabase "github.com/m3rciful/relaybot/core/database"
)

const (
	DefaultWelcomeMessage = "👋 Welcome! I am the feedback bot. Please answer a few questions."
	DefaultFinalMessage   = "✅ Thank you for your feedback! Your message has been sent to the operator."
	DefaultStepTimeout    = 300
)

// RelayConfig controls the questionnaire and the relay texts.
type RelayConfig struct {
	// Questions may be given as a YAML list or as the pipe-delimited QUESTIONS variable.
	Questions          []string `yaml:"questions" ignored:"true"`
	QuestionsRaw       string   `yaml:"-" envconfig:"QUESTIONS"`
	WelcomeMessage     string   `yaml:"welcome_message" envconfig:"WELCOME_MESSAGE"`
	FinalMessage       string   `yaml:"final_message" envconfig:"FINAL_MESSAGE"`
	StepTimeoutSeconds int      `yaml:"step_timeout_seconds" envconfig:"STEP_TIMEOUT_SECONDS"`
}

// StepTimeout returns the per-step reply timeout.
func (r RelayConfig) StepTimeout() time.Duration {
	return time.Duration(r.StepTimeoutSeconds) * time.Second
}

// AppConfig is the root configuration document.
type AppConfig struct {
	coreconfig.Config `yaml:",inline"`
	Database          coredatabase.Config `yaml:"database"`
	Relay             RelayConfig         `yaml:"relay"`
}

// CoreConfig exposes the embedded core configuration.
func (c *AppConfig) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads the YAML file at path (optional), overlays the environment and
// validates the result.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStorage reads only what the storage commands need: no bot token or
// operator id is required.
func LoadStorage(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *AppConfig) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return c.Relay.Normalize()
}

// Normalize parses the question list and applies text and timeout defaults.
func (r *RelayConfig) Normalize() error {
	if strings.TrimSpace(r.QuestionsRaw) != "" {
		r.Questions = ParseQuestions(r.QuestionsRaw)
	} else {
		r.Questions = cleanQuestions(r.Questions)
	}
	if strings.TrimSpace(r.WelcomeMessage) == "" {
		r.WelcomeMessage = DefaultWelcomeMessage
	}
	if strings.TrimSpace(r.FinalMessage) == "" {
		r.FinalMessage = DefaultFinalMessage
	}
	if r.StepTimeoutSeconds < 0 {
		return fmt.Errorf("relay.step_timeout_seconds must be >= 0")
	}
	if r.StepTimeoutSeconds == 0 {
		r.StepTimeoutSeconds = DefaultStepTimeout
	}
	return nil
}

// ParseQuestions splits a pipe-delimited prompt list, trimming each prompt
// and dropping empty ones.
func ParseQuestions(raw string) []string {
	return cleanQuestions(strings.Split(raw, "|"))
}

func cleanQuestions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, q := range in {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
