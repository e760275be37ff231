// Package custom holds operator-defined regex rules that are added, changed
// and removed at runtime, next to the built-in catalog.
package custom

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

// Kind limits which analysis path a rule takes part in.
type Kind string

const (
	KindAny        Kind = ""
	KindLine       Kind = "line"
	KindStructural Kind = "structural"
)

var (
	ErrRuleNotFound    = errors.New("custom rule not found")
	ErrUnknownSeverity = errors.New("unknown severity")
)

// InvalidPatternError is returned when a rule's pattern does not compile.
type InvalidPatternError struct {
	RuleID  string
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("custom rule %s: invalid pattern %q: %v", e.RuleID, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

type CustomRule struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Severity    model.Severity `json:"severity" yaml:"severity"`
	Pattern     string         `json:"pattern" yaml:"pattern"`
	Message     string         `json:"message" yaml:"message"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	Kind        Kind           `json:"kind,omitempty" yaml:"kind,omitempty"`
	CreatedBy   string         `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time      `json:"updatedAt" yaml:"-"`
}

type RuleMatch struct {
	RuleID   string         `json:"ruleId"`
	FilePath string         `json:"filePath"`
	Line     int            `json:"line"`
	Column   int            `json:"column"`
	Message  string         `json:"message"`
	Severity model.Severity `json:"severity"`
	Context  string         `json:"context"`
}

type entry struct {
	rule CustomRule
	re   *regexp.Regexp
}

// Engine is safe for concurrent use. A rule and its compiled pattern live in
// one map entry, so readers never see one without the other.
type Engine struct {
	mu    sync.RWMutex
	rules map[string]entry
	now   func() time.Time
}

func NewEngine() *Engine {
	return &Engine{rules: map[string]entry{}, now: time.Now}
}

func compile(rule CustomRule) (*regexp.Regexp, error) {
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return nil, &InvalidPatternError{RuleID: rule.ID, Pattern: rule.Pattern, Err: err}
	}
	return re, nil
}

func normalize(rule CustomRule) (CustomRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.Severity == "" {
		rule.Severity = model.SeverityMedium
	} else {
		sev, ok := model.LookupSeverity(string(rule.Severity))
		if !ok {
			return CustomRule{}, fmt.Errorf("custom rule %s: %w %q", rule.ID, ErrUnknownSeverity, rule.Severity)
		}
		rule.Severity = sev
	}
	if rule.Name == "" {
		rule.Name = rule.ID
	}
	return rule, nil
}

// Add registers rule, replacing any rule with the same ID. An empty ID is
// filled with a fresh UUID. The stored rule is returned.
func (e *Engine) Add(rule CustomRule) (CustomRule, error) {
	rule, err := normalize(rule)
	if err != nil {
		return CustomRule{}, err
	}
	re, err := compile(rule)
	if err != nil {
		return CustomRule{}, err
	}
	now := e.now()
	rule.CreatedAt, rule.UpdatedAt = now, now
	e.mu.Lock()
	e.rules[rule.ID] = entry{rule: rule, re: re}
	e.mu.Unlock()
	return rule, nil
}

// Remove deletes the rule with id; unknown ids are ignored.
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	delete(e.rules, id)
	e.mu.Unlock()
}

// Update replaces a rule in one step. The pattern is compiled before the
// swap, so a bad pattern leaves the previous rule in place.
func (e *Engine) Update(rule CustomRule) (CustomRule, error) {
	rule, err := normalize(rule)
	if err != nil {
		return CustomRule{}, err
	}
	re, err := compile(rule)
	if err != nil {
		return CustomRule{}, err
	}
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	rule.CreatedAt = now
	if old, ok := e.rules[rule.ID]; ok {
		rule.CreatedAt = old.rule.CreatedAt
	}
	rule.UpdatedAt = now
	e.rules[rule.ID] = entry{rule: rule, re: re}
	return rule, nil
}

func (e *Engine) Get(id string) (CustomRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	en, ok := e.rules[id]
	return en.rule, ok
}

// List returns all registered rules ordered by ID.
func (e *Engine) List() []CustomRule {
	e.mu.RLock()
	out := make([]CustomRule, 0, len(e.rules))
	for _, en := range e.rules {
		out = append(out, en.rule)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// SetEnabled toggles a rule without dropping its configuration.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	en.rule.Enabled = enabled
	en.rule.UpdatedAt = e.now()
	e.rules[id] = en
	return nil
}

// active snapshots the enabled entries for kind, ordered by ID so results
// are deterministic.
func (e *Engine) active(kind Kind) []entry {
	e.mu.RLock()
	out := make([]entry, 0, len(e.rules))
	for _, en := range e.rules {
		if !en.rule.Enabled {
			continue
		}
		if en.rule.Kind != KindAny && en.rule.Kind != kind {
			continue
		}
		out = append(out, en)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].rule.ID < out[j].rule.ID })
	return out
}

// AnalyzeText runs the enabled line rules over content. Each rule reports
// at most one match per line: the first, with 1-based line and column and
// the whole line as context.
func (e *Engine) AnalyzeText(path, content string) []RuleMatch {
	rules := e.active(KindLine)
	if len(rules) == 0 {
		return nil
	}
	lines := strings.Split(content, "\n")
	var out []RuleMatch
	for _, en := range rules {
		for i, line := range lines {
			line = strings.TrimRight(line, "\r")
			loc := en.re.FindStringIndex(line)
			if loc == nil {
				continue
			}
			out = append(out, match(en.rule, path, i+1, loc[0]+1, line))
		}
	}
	return out
}

// AnalyzeTree runs the enabled structural rules over each function's
// attributes and signature. An attribute match is reported on its own and
// the signature of that function is not tested.
func (e *Engine) AnalyzeTree(tree *syntax.Tree) []RuleMatch {
	rules := e.active(KindStructural)
	if len(rules) == 0 || tree == nil {
		return nil
	}
	var out []RuleMatch
	for _, fn := range tree.Functions {
		for _, en := range rules {
			if m, ok := matchFunction(en, tree.Path, fn); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// Analyze runs both paths over one parsed file. A structural match is
// dropped when the line path already reported the same rule on a line of
// that function's attributes or signature, so a rule of KindAny is counted
// once per occurrence.
func (e *Engine) Analyze(tree *syntax.Tree) []RuleMatch {
	if tree == nil {
		return nil
	}
	out := e.AnalyzeText(tree.Path, string(tree.Source))
	lines := make(map[string]map[int]bool)
	for _, m := range out {
		if lines[m.RuleID] == nil {
			lines[m.RuleID] = map[int]bool{}
		}
		lines[m.RuleID][m.Line] = true
	}
	rules := e.active(KindStructural)
	for _, fn := range tree.Functions {
		from, to := headerLines(fn)
		for _, en := range rules {
			m, ok := matchFunction(en, tree.Path, fn)
			if !ok || reportedWithin(lines[m.RuleID], from, to) {
				continue
			}
			out = append(out, m)
		}
	}
	return out
}

// headerLines is the line span from a function's first attribute to the
// opening of its body.
func headerLines(fn *syntax.Function) (int, int) {
	from, to := fn.Pos.Line, fn.Pos.Line
	if len(fn.Attrs) > 0 && fn.Attrs[0].Pos.Line < from {
		from = fn.Attrs[0].Pos.Line
	}
	if fn.Body != nil {
		to = fn.Body.Start.Line
	} else if fn.Node != nil {
		to = fn.Node.End.Line
	}
	return from, to
}

func reportedWithin(lines map[int]bool, from, to int) bool {
	for l := from; l <= to; l++ {
		if lines[l] {
			return true
		}
	}
	return false
}

func matchFunction(en entry, path string, fn *syntax.Function) (RuleMatch, bool) {
	for _, a := range fn.Attrs {
		if loc := en.re.FindStringIndex(a.Text); loc != nil {
			return match(en.rule, path, a.Pos.Line, a.Pos.Column+loc[0], a.Text), true
		}
	}
	if loc := en.re.FindStringIndex(fn.Signature); loc != nil {
		return match(en.rule, path, fn.Pos.Line, fn.Pos.Column, fn.Signature), true
	}
	return RuleMatch{}, false
}

func match(rule CustomRule, path string, line, col int, context string) RuleMatch {
	msg := rule.Message
	if msg == "" {
		msg = rule.Description
	}
	if msg == "" {
		msg = rule.Name
	}
	return RuleMatch{
		RuleID:   rule.ID,
		FilePath: path,
		Line:     line,
		Column:   col,
		Message:  msg,
		Severity: rule.Severity,
		Context:  context,
	}
}
