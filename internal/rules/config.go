package rules

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gnolang/tpat/pattern"
)

// DefaultConfigFile is the configuration file name looked up by the CLI.
const DefaultConfigFile = ".tpat.yaml"

// Config is the on-disk rule configuration.
type Config struct {
	Name  string       `yaml:"name"`
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig describes one rule. An entry naming a built-in rule without a
// pattern only switches that rule on or off.
type RuleConfig struct {
	ID          string           `yaml:"id"`
	Description string           `yaml:"description,omitempty"`
	Severity    pattern.Severity `yaml:"severity,omitempty"`
	Kind        pattern.Kind     `yaml:"kind,omitempty"`
	Pattern     string           `yaml:"pattern,omitempty"`
	Replacement string           `yaml:"replacement,omitempty"`
	Owner       string           `yaml:"owner,omitempty"`
	Guard       string           `yaml:"guard,omitempty"`
	Body        string           `yaml:"body,omitempty"`
	BodyKind    pattern.Kind     `yaml:"body_kind,omitempty"`
	NegateBody  bool             `yaml:"negate_body,omitempty"`
	Imports     Imports          `yaml:"imports,omitempty"`
	Enabled     *bool            `yaml:"enabled,omitempty"`

	Alternatives []AlternativeConfig `yaml:"alternatives,omitempty"`
}

// AlternativeConfig is a guarded replacement, tried before Replacement.
type AlternativeConfig struct {
	Replacement string  `yaml:"replacement"`
	Guard       string  `yaml:"guard,omitempty"`
	Imports     Imports `yaml:"imports,omitempty"`
}

type Imports struct {
	Add    []string `yaml:"add,omitempty"`
	Remove []string `yaml:"remove,omitempty"`
}

func (rc RuleConfig) enabled() bool {
	return rc.Enabled == nil || *rc.Enabled
}

// Rule converts the entry into a registrable rule. Entries without a kind
// describe expressions.
func (rc RuleConfig) Rule() pattern.Rule {
	kind := rc.Kind
	if kind == 0 {
		kind = pattern.Expression
	}
	var alts []pattern.Alternative
	for _, a := range rc.Alternatives {
		alts = append(alts, pattern.Alternative{
			Replacement:     a.Replacement,
			Guard:           a.Guard,
			ImportsToAdd:    a.Imports.Add,
			ImportsToRemove: a.Imports.Remove,
		})
	}
	return pattern.Rule{
		ID: rc.ID,
		Pattern: pattern.Pattern{
			Template:   rc.Pattern,
			Kind:       kind,
			Owner:      rc.Owner,
			Guard:      rc.Guard,
			Body:       rc.Body,
			BodyKind:   rc.BodyKind,
			NegateBody: rc.NegateBody,
		},
		Replacement:     rc.Replacement,
		Alternatives:    alts,
		ImportsToAdd:    rc.Imports.Add,
		ImportsToRemove: rc.Imports.Remove,
		Description:     rc.Description,
		Severity:        rc.Severity,
		Enabled:         rc.enabled(),
	}
}

// FromRule is the inverse of Rule.
func FromRule(r pattern.Rule) RuleConfig {
	enabled := r.Enabled
	rc := RuleConfig{
		ID:          r.ID,
		Description: r.Description,
		Severity:    r.Severity,
		Kind:        r.Pattern.Kind,
		Pattern:     r.Pattern.Template,
		Replacement: r.Replacement,
		Owner:       r.Pattern.Owner,
		Guard:       r.Pattern.Guard,
		Body:        r.Pattern.Body,
		BodyKind:    r.Pattern.BodyKind,
		NegateBody:  r.Pattern.NegateBody,
		Imports:     Imports{Add: r.ImportsToAdd, Remove: r.ImportsToRemove},
		Enabled:     &enabled,
	}
	for _, a := range r.Alternatives {
		rc.Alternatives = append(rc.Alternatives, AlternativeConfig{
			Replacement: a.Replacement,
			Guard:       a.Guard,
			Imports:     Imports{Add: a.ImportsToAdd, Remove: a.ImportsToRemove},
		})
	}
	return rc
}

// Load reads a configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOptional is Load, except that a missing file yields an empty config.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}

// Write stores cfg at path, replacing any existing file.
func Write(path string, cfg *Config) error {
	d, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}

// DefaultConfig lists the built-in rules, all enabled.
func DefaultConfig() *Config {
	cfg := &Config{Name: "tpat"}
	for _, r := range Builtin() {
		cfg.Rules = append(cfg.Rules, FromRule(r))
	}
	return cfg
}

// NewRegistry registers the built-in rules followed by the rules of cfg.
// A config entry with the id of a built-in rule and no pattern toggles the
// built-in; with a pattern it replaces it. cfg may be nil.
func NewRegistry(logger *zap.Logger, cfg *Config) (*pattern.Registry, error) {
	builtin := Builtin()
	overrides := make(map[string]RuleConfig)
	var custom []RuleConfig
	if cfg != nil {
		for _, rc := range cfg.Rules {
			if isBuiltin(builtin, rc.ID) {
				overrides[rc.ID] = rc
				continue
			}
			custom = append(custom, rc)
		}
	}

	reg := pattern.NewRegistry(logger)
	var errs error
	for _, r := range builtin {
		if rc, ok := overrides[r.ID]; ok {
			if rc.Pattern != "" {
				r = rc.Rule()
			} else {
				r.Enabled = rc.enabled()
			}
		}
		errs = multierr.Append(errs, reg.Register(r))
	}
	for _, rc := range custom {
		if rc.Pattern == "" {
			errs = multierr.Append(errs, fmt.Errorf("rule %q has no pattern", rc.ID))
			continue
		}
		errs = multierr.Append(errs, reg.Register(rc.Rule()))
	}
	return reg, errs
}

func isBuiltin(rules []pattern.Rule, id string) bool {
	for _, r := range rules {
		if r.ID == id {
			return true
		}
	}
	return false
}
