// Package config manages global focuslock configuration: the durable
// settings (phrase pools, repeat counts, attempt limits) supplied to the
// orchestrator as request payload at enqueue time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with human-readable YAML encoding ("30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the app-level settings.
type Config struct {
	// TickInterval drives the orchestrator tick loop.
	TickInterval Duration `yaml:"tick_interval"`

	// TriggerInterval is how often the interval trigger enqueues an
	// interaction while running.
	TriggerInterval Duration `yaml:"trigger_interval"`

	// StrictDefault applies strict mode to triggered interactions.
	StrictDefault bool `yaml:"strict_default"`

	// LockPhrases is the pool lock-phrase challenges draw from.
	LockPhrases []string `yaml:"lock_phrases"`

	// LockRepeats is the required repeat count for lock-phrase challenges.
	LockRepeats int `yaml:"lock_repeats"`

	// MercyPhrases is the pool mercy challenges draw from.
	MercyPhrases []string `yaml:"mercy_phrases"`

	// GuessMax is the inclusive upper bound for numeric-guess targets.
	GuessMax int `yaml:"guess_max"`

	// GuessAttempts is the attempt limit for numeric-guess challenges.
	GuessAttempts int `yaml:"guess_attempts"`

	// LayoutPath points at the display-layout YAML file. Empty falls back
	// to the controlling terminal as a single primary surface.
	LayoutPath string `yaml:"layout_path"`

	// LedgerPath points at the XP ledger database. Empty disables
	// persistence.
	LedgerPath string `yaml:"ledger_path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TickInterval:    Duration(100 * time.Millisecond),
		TriggerInterval: Duration(20 * time.Minute),
		LockPhrases: []string{
			"i am present",
			"one thing at a time",
			"the work in front of me is enough",
		},
		LockRepeats:   3,
		GuessMax:      100,
		GuessAttempts: 3,
	}
}

// Path resolves the config file location, honoring XDG_CONFIG_HOME.
func Path() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "focuslock", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "focuslock", "config.yaml"), nil
}

// Load reads the config from the default location. A missing file yields
// defaults, not an error.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from path, falling back to defaults for a
// missing file and for any omitted field.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.TriggerInterval <= 0 {
		c.TriggerInterval = def.TriggerInterval
	}
	if len(c.LockPhrases) == 0 {
		c.LockPhrases = def.LockPhrases
	}
	if c.LockRepeats < 1 {
		c.LockRepeats = def.LockRepeats
	}
	if c.GuessMax < 1 {
		c.GuessMax = def.GuessMax
	}
	if c.GuessAttempts < 1 {
		c.GuessAttempts = def.GuessAttempts
	}
}
