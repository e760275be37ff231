package custom

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JijoJohny/SolGuard/internal/model"
)

// A rule pack is a YAML file:
//
//	rules:
//	  - id: no-unsafe
//	    name: Unsafe block
//	    severity: high
//	    pattern: 'unsafe\s*\{'
//	    message: unsafe code in program
//	    kind: line
type pack struct {
	Rules []packRule `yaml:"rules"`
}

type packRule struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
	Pattern     string `yaml:"pattern"`
	Message     string `yaml:"message"`
	Kind        string `yaml:"kind"`
	Enabled     *bool  `yaml:"enabled"`
	CreatedBy   string `yaml:"createdBy"`
}

// ReadPack parses a rule pack without registering anything.
func ReadPack(path string) ([]CustomRule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules pack: %w", err)
	}
	var p pack
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse rules pack %s: %w", path, err)
	}
	out := make([]CustomRule, 0, len(p.Rules))
	for i, r := range p.Rules {
		rule, err := r.toRule()
		if err != nil {
			return nil, fmt.Errorf("rules pack %s: rule %d (%s): %w", path, i+1, r.ID, err)
		}
		if _, err := compile(rule); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r packRule) toRule() (CustomRule, error) {
	if strings.TrimSpace(r.Pattern) == "" {
		return CustomRule{}, fmt.Errorf("missing pattern")
	}
	rule := CustomRule{
		ID:          strings.TrimSpace(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Pattern:     r.Pattern,
		Message:     r.Message,
		Enabled:     r.Enabled == nil || *r.Enabled,
		CreatedBy:   r.CreatedBy,
	}
	if r.Severity != "" {
		sev, ok := model.LookupSeverity(r.Severity)
		if !ok {
			return CustomRule{}, fmt.Errorf("unknown severity %q", r.Severity)
		}
		rule.Severity = sev
	}
	switch k := Kind(strings.ToLower(strings.TrimSpace(r.Kind))); k {
	case KindAny, KindLine, KindStructural:
		rule.Kind = k
	default:
		return CustomRule{}, fmt.Errorf("unknown kind %q (want line or structural)", r.Kind)
	}
	return rule, nil
}

// LoadFile reads a rule pack and adds every rule in it. Nothing is added
// when any rule in the pack is invalid. It returns the number of rules added.
func (e *Engine) LoadFile(path string) (int, error) {
	rules, err := ReadPack(path)
	if err != nil {
		return 0, err
	}
	for _, r := range rules {
		if _, err := e.Add(r); err != nil {
			return 0, err
		}
	}
	return len(rules), nil
}
