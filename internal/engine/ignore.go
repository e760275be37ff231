package engine

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/JijoJohny/SolGuard/internal/config"
)

// suppressMarker is written in a comment above the flagged line:
//
//	// solguard:ignore OWNER-CHECK reason="checked by the caller"
const suppressMarker = "solguard:ignore"

const suppressWindow = 5

// inlineSuppressed looks for a marker naming ruleID on line or on one of the
// suppressWindow lines above it. lines is the file split on "\n".
func inlineSuppressed(lines []string, ruleID string, line int) bool {
	if ruleID == "" || line < 1 {
		return false
	}
	from := line - 1 - suppressWindow
	if from < 0 {
		from = 0
	}
	to := line - 1
	if to >= len(lines) {
		to = len(lines) - 1
	}
	for i := from; i <= to; i++ {
		idx := strings.Index(lines[i], suppressMarker)
		if idx < 0 {
			continue
		}
		fields := strings.Fields(lines[i][idx+len(suppressMarker):])
		for _, f := range fields {
			if strings.EqualFold(strings.TrimRight(f, ","), ruleID) {
				return true
			}
		}
	}
	return false
}

// ignoreSet holds the config ignore entries that are still in force.
type ignoreSet struct {
	root  string
	rules []config.IgnoreRule
}

func newIgnoreSet(root string, rules []config.IgnoreRule, now time.Time) ignoreSet {
	s := ignoreSet{root: root}
	for _, r := range rules {
		if r.Expires != "" {
			if t, err := time.Parse("2006-01-02", r.Expires); err == nil && now.After(t) {
				continue
			}
		}
		s.rules = append(s.rules, r)
	}
	return s
}

// matches reports whether a finding of ruleID in file is ignored by config.
// Path globs are tried against the file as reported and relative to the
// scan root.
func (s ignoreSet) matches(ruleID, file string) bool {
	for _, ig := range s.rules {
		if ig.Rule != "" && !strings.EqualFold(ig.Rule, ruleID) {
			continue
		}
		if ig.Path != "" && !s.pathMatches(ig.Path, file) {
			continue
		}
		return true
	}
	return false
}

// rel returns file relative to the scan root, slash separated, or file
// itself when it lies outside the root.
func (s ignoreSet) rel(file string) string {
	if s.root == "" {
		return filepath.ToSlash(file)
	}
	r, err := filepath.Rel(s.root, filepath.FromSlash(file))
	if err != nil || strings.HasPrefix(r, "..") {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(r)
}

func (s ignoreSet) pathMatches(glob, file string) bool {
	file = filepath.ToSlash(file)
	if ok, _ := doublestar.Match(glob, file); ok {
		return true
	}
	ok, _ := doublestar.Match(glob, s.rel(file))
	return ok
}
