package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrDenied reports a query the rules do not permit.
var ErrDenied = errors.New("operation not permitted")

// Checker decides whether a subject may run an operation at all. It runs
// before any data leaves a provider; redaction of permitted results is the
// anonymization engine's job, not the checker's.
type Checker interface {
	Authorize(ctx context.Context, subject, operation string) error
}

type Rule struct {
	Subject    string   `yaml:"subject" json:"subject"`
	Operations []string `yaml:"operations" json:"operations"`
}

type RulesConfig struct {
	DefaultAllow bool   `yaml:"default_allow" json:"default_allow"`
	Rules        []Rule `yaml:"rules" json:"rules"`
}

func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return RulesConfig{DefaultAllow: true}, nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return RulesConfig{}, err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, err
	}

	if !cfg.DefaultAllow && len(cfg.Rules) == 0 {
		return RulesConfig{}, errors.New("no policy rules configured")
	}

	return cfg, nil
}

type RuleChecker struct {
	bySubject    map[string]map[string]struct{}
	defaultAllow bool
}

func NewChecker(cfg RulesConfig) *RuleChecker {
	c := &RuleChecker{
		bySubject:    make(map[string]map[string]struct{}),
		defaultAllow: cfg.DefaultAllow,
	}
	for _, rule := range cfg.Rules {
		subject := strings.ToLower(rule.Subject)
		ops, ok := c.bySubject[subject]
		if !ok {
			ops = make(map[string]struct{})
			c.bySubject[subject] = ops
		}
		for _, op := range rule.Operations {
			ops[strings.ToLower(op)] = struct{}{}
		}
	}
	return c
}

func (c *RuleChecker) Authorize(ctx context.Context, subject, operation string) error {
	ops, ok := c.bySubject[strings.ToLower(subject)]
	if !ok {
		if c.defaultAllow {
			return nil
		}
		return fmt.Errorf("%w: subject %q has no rules", ErrDenied, subject)
	}
	if _, ok := ops["*"]; ok {
		return nil
	}
	if _, ok := ops[strings.ToLower(operation)]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s may not run %s", ErrDenied, subject, operation)
}
