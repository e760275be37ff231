package plugins

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

// Rule is a structural check over one parsed file. Meta carries the rule's
// name (Title), description and fixed severity. Analyze must not modify the
// tree and returns nil when nothing matches.
type Rule interface {
	Meta() model.RuleMeta
	Analyze(tree *syntax.Tree) []model.Vulnerability
}

// Failure records a rule that panicked on a file.
type Failure struct {
	RuleID string
	Err    error
}

type Registry struct{ rules []Rule }

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Register(rule Rule) { r.rules = append(r.rules, rule) }

func (r *Registry) RegisterBuiltin() {
	r.Register(&svmMissingOwnerCheck{})
	r.Register(&svmMissingSignerCheck{})
	r.Register(&svmPDAValidation{})
	r.Register(&svmSysvarSpoofing{})
	r.Register(&svmUncheckedArithmetic{})
	r.Register(&svmArbitraryCPI{})
	r.Register(&svmReinitialization{})
}

// Builtin returns a registry holding the full built-in catalog.
func Builtin() *Registry {
	r := NewRegistry()
	r.RegisterBuiltin()
	return r
}

// Disable drops the rules whose IDs are listed (case-insensitive).
func (r *Registry) Disable(ids ...string) {
	if len(ids) == 0 {
		return
	}
	off := map[string]bool{}
	for _, id := range ids {
		off[strings.ToUpper(strings.TrimSpace(id))] = true
	}
	kept := r.rules[:0]
	for _, rule := range r.rules {
		if !off[strings.ToUpper(rule.Meta().ID)] {
			kept = append(kept, rule)
		}
	}
	r.rules = kept
}

func (r *Registry) Rules() []Rule { return r.rules }

// Run evaluates every rule against tree. A panicking rule loses its
// contribution for this tree only and is reported as a Failure.
func (r *Registry) Run(tree *syntax.Tree) ([]model.Vulnerability, []Failure) {
	var out []model.Vulnerability
	var failures []Failure
	for _, rule := range r.rules {
		vs, err := runRule(rule, tree)
		if err != nil {
			failures = append(failures, Failure{RuleID: rule.Meta().ID, Err: err})
			continue
		}
		for i := range vs {
			if vs[i].Location.File == "" {
				vs[i].Location.File = tree.Path
			}
			vs[i].Location.File = filepath.ToSlash(vs[i].Location.File)
		}
		out = append(out, vs...)
	}
	return out, failures
}

func runRule(rule Rule, tree *syntax.Tree) (vs []model.Vulnerability, err error) {
	defer func() {
		if p := recover(); p != nil {
			vs = nil
			err = fmt.Errorf("rule %s panicked: %v", rule.Meta().ID, p)
		}
	}()
	return rule.Analyze(tree), nil
}
