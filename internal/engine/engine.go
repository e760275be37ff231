package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JijoJohny/SolGuard/internal/config"
	"github.com/JijoJohny/SolGuard/internal/custom"
	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/plugins"
	"github.com/JijoJohny/SolGuard/internal/syntax"
	"github.com/JijoJohny/SolGuard/internal/util"
)

const (
	titleParseSkipped = "file skipped: parse error"
	titleReadSkipped  = "file skipped: unreadable"
	titleRuleFailed   = "rule failed"
)

// Analyzer runs the rule catalog, and optionally custom rules, over Rust
// sources. It is safe for concurrent use; each call builds a fresh report.
type Analyzer struct {
	log     *zap.Logger
	workers int
	rules   *plugins.Registry
	custom  *custom.Engine
	exclude []string
	ignores []config.IgnoreRule
	now     func() time.Time
}

type Option func(*Analyzer)

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

// WithWorkers bounds how many files are analyzed at once. n <= 0 means
// runtime.NumCPU().
func WithWorkers(n int) Option { return func(a *Analyzer) { a.workers = n } }

func WithRules(r *plugins.Registry) Option { return func(a *Analyzer) { a.rules = r } }

func WithCustomRules(e *custom.Engine) Option { return func(a *Analyzer) { a.custom = e } }

// WithExclude sets doublestar globs pruned from directory scans.
func WithExclude(globs ...string) Option {
	return func(a *Analyzer) { a.exclude = append([]string(nil), globs...) }
}

func WithIgnores(rules ...config.IgnoreRule) Option {
	return func(a *Analyzer) { a.ignores = append([]config.IgnoreRule(nil), rules...) }
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(a)
	}
	if a.rules == nil {
		a.rules = plugins.Builtin()
	}
	if a.workers <= 0 {
		a.workers = runtime.NumCPU()
	}
	return a
}

// Analyze scans path, which may be a file or a directory.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*model.AnalysisReport, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &LocatorError{Path: path, Err: err}
	}
	if fi.IsDir() {
		return a.AnalyzeDirectory(ctx, path)
	}
	return a.AnalyzeFile(ctx, path)
}

// AnalyzeFile scans a single file. Unlike a directory scan, a parse error is
// returned to the caller.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*model.AnalysisReport, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &LocatorError{Path: path, Err: err}
	}
	if fi.IsDir() {
		return nil, &LocatorError{Path: path, Err: errors.New("is a directory")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LocatorError{Path: path, Err: err}
	}
	ig := newIgnoreSet(filepath.Dir(path), a.ignores, a.now())
	return a.analyzeSource(ctx, path, src, ig)
}

// AnalyzeDirectory scans every Rust file under root. Files that fail to
// parse become warnings. When ctx is cancelled the findings gathered so far
// are returned together with ctx.Err().
func (a *Analyzer) AnalyzeDirectory(ctx context.Context, root string) (*model.AnalysisReport, error) {
	start := time.Now()
	files, err := discoverFiles(ctx, root, a.exclude, a.log)
	if err != nil {
		if ctx.Err() != nil {
			return model.NewReport(), ctx.Err()
		}
		return nil, err
	}
	a.log.Debug("discovered files", zap.String("root", root), zap.Int("files", len(files)))
	ig := newIgnoreSet(root, a.ignores, a.now())

	type res struct {
		idx int
		rep *model.AnalysisReport
	}
	ch := make(chan res, len(files))
	var wg sync.WaitGroup
	sem := make(chan struct{}, a.workers)
dispatch:
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}
		i, path := i, path
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			ch <- res{idx: i, rep: a.analyzeDirFile(ctx, path, ig)}
		}()
	}
	wg.Wait()
	close(ch)

	per := make([]*model.AnalysisReport, len(files))
	for r := range ch {
		per[r.idx] = r.rep
	}
	out := model.NewReport()
	for _, r := range per {
		out.Merge(r)
	}
	a.log.Info("scan complete",
		zap.String("root", root),
		zap.Int("files", len(files)),
		zap.Int("vulnerabilities", len(out.Vulnerabilities)),
		zap.Int("warnings", len(out.Warnings)),
		zap.Duration("elapsed", time.Since(start)))
	return out, ctx.Err()
}

// analyzeDirFile isolates failures of one file of a directory scan.
func (a *Analyzer) analyzeDirFile(ctx context.Context, path string, ig ignoreSet) *model.AnalysisReport {
	file := filepath.ToSlash(path)
	src, err := os.ReadFile(path)
	if err != nil {
		a.log.Warn("cannot read file", zap.String("file", file), zap.Error(err))
		rep := model.NewReport()
		rep.Warnings = append(rep.Warnings, model.Warning{
			Title:       titleReadSkipped,
			Description: err.Error(),
			Location:    model.Location{File: file, Line: 1, Column: 1},
		})
		return rep
	}
	rep, err := a.analyzeSource(ctx, path, src, ig)
	if err == nil {
		return rep
	}
	rep = model.NewReport()
	if ctx.Err() != nil {
		return rep
	}
	loc := model.Location{File: file, Line: 1, Column: 1}
	var pe *syntax.ParseError
	if errors.As(err, &pe) {
		loc.Line, loc.Column = pe.Line, pe.Column
	}
	a.log.Warn("skipping file", zap.String("file", file), zap.Error(err))
	rep.Warnings = append(rep.Warnings, model.Warning{
		Title:       titleParseSkipped,
		Description: err.Error(),
		Location:    loc,
	})
	return rep
}

func (a *Analyzer) analyzeSource(ctx context.Context, path string, src []byte, ig ignoreSet) (*model.AnalysisReport, error) {
	file := filepath.ToSlash(path)
	a.log.Debug("analyzing", zap.String("file", file))
	tree, err := syntax.Parse(ctx, file, src)
	if err != nil {
		return nil, err
	}
	lines := util.SplitLines(src)
	rep := model.NewReport()

	vs, failures := a.rules.Run(tree)
	for _, f := range failures {
		a.log.Error("rule failed", zap.String("rule", f.RuleID), zap.String("file", file), zap.Error(f.Err))
		rep.Warnings = append(rep.Warnings, model.Warning{
			Title:       titleRuleFailed,
			Description: fmt.Sprintf("%s: %v", f.RuleID, f.Err),
			Location:    model.Location{File: file, Line: 1, Column: 1},
		})
	}
	if a.custom != nil {
		for _, m := range a.custom.Analyze(tree) {
			loc := model.Location{File: file, Line: m.Line, Column: m.Column}
			if m.Severity == model.SeverityInfo {
				if !a.suppressed(ig, lines, m.RuleID, loc) {
					rep.Suggestions = append(rep.Suggestions, model.Suggestion{
						Title:       m.RuleID,
						Description: m.Message,
						Location:    loc,
					})
				}
				continue
			}
			vs = append(vs, customVulnerability(a.custom, m, loc))
		}
	}
	for _, v := range vs {
		if a.suppressed(ig, lines, v.RuleID, v.Location) {
			continue
		}
		if v.Snippet == "" && v.Location.Line >= 1 && v.Location.Line <= len(lines) {
			v.Snippet = strings.TrimSpace(lines[v.Location.Line-1])
		}
		v.Fingerprint = util.Fingerprint(v.RuleID, ig.rel(v.Location.File), v.Snippet)
		rep.Vulnerabilities = append(rep.Vulnerabilities, v)
	}
	rep.Vulnerabilities = dedupe(rep.Vulnerabilities)
	rep.Suggestions = dedupeSuggestions(rep.Suggestions)
	return rep, nil
}

func (a *Analyzer) suppressed(ig ignoreSet, lines []string, ruleID string, loc model.Location) bool {
	if inlineSuppressed(lines, ruleID, loc.Line) {
		a.log.Debug("suppressed inline", zap.String("rule", ruleID), zap.Stringer("at", loc))
		return true
	}
	return ig.matches(ruleID, loc.File)
}

func customVulnerability(e *custom.Engine, m custom.RuleMatch, loc model.Location) model.Vulnerability {
	title := m.RuleID
	desc := m.Message
	if r, ok := e.Get(m.RuleID); ok {
		title = r.Name
		if r.Description != "" {
			desc = r.Description + ": " + m.Message
		}
	}
	return model.Vulnerability{
		RuleID:         m.RuleID,
		Severity:       m.Severity,
		Title:          title,
		Description:    desc,
		Location:       loc,
		Recommendation: "Review the flagged code against the custom rule " + m.RuleID + ".",
		Snippet:        strings.TrimSpace(m.Context),
	}
}
