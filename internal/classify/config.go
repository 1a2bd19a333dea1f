package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the rule table and label ordering used for every request
type Config struct {
	Labels Labels  `yaml:"labels"`
	Rules  RuleSet `yaml:"rules"`
}

// DefaultConfig returns the Indonesian identity document table:
// family card, identity card, passport and driving license.
func DefaultConfig() Config {
	return Config{
		Labels: Labels{"KK", "KTP", "PASPOR", "SIM"},
		Rules: RuleSet{
			{Label: "KTP", Keywords: []string{"nik", "agama", "kewarganegaraan", "darah"}},
			{Label: "SIM", Keywords: []string{"surat izin mengemudi", "driving license"}},
		},
	}
}

// Validate checks that the configuration can drive a classification
func (c Config) Validate() error {
	if len(c.Labels) == 0 {
		return fmt.Errorf("at least one label is required")
	}
	if len(c.Rules) == 0 {
		return fmt.Errorf("at least one rule is required")
	}
	seen := make(map[string]bool, len(c.Labels))
	for i, label := range c.Labels {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("label %d is empty", i)
		}
		if seen[label] {
			return fmt.Errorf("duplicate label %q", label)
		}
		seen[label] = true
	}
	for i, rule := range c.Rules {
		if strings.TrimSpace(rule.Label) == "" {
			return fmt.Errorf("rule %d has no label", i)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("rule %d (%s) has no keywords", i, rule.Label)
		}
		for _, kw := range rule.Keywords {
			if kw == "" {
				return fmt.Errorf("rule %d (%s) has an empty keyword", i, rule.Label)
			}
		}
	}
	return nil
}

// ParseConfig decodes a YAML rule file
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing rules: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid rules: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads a YAML rule file, or returns DefaultConfig when path is empty
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseConfig(data)
}
