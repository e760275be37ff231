package plugins

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

var (
	initFnRe      = regexp.MustCompile(`(?i)init`)
	initGuardRe   = regexp.MustCompile(`(?i)is_initialized|initialized|discriminator|AlreadyIn(itialized|Use)`)
	contextTypeRe = regexp.MustCompile(`\bContext\s*<\s*(?:'[A-Za-z_]+\s*,\s*)*([A-Za-z_][A-Za-z0-9_]*)`)
	anchorInitRe  = regexp.MustCompile(`\binit\b`)
)

// svmReinitialization flags initializers that write account state without
// first refusing accounts that are already initialized.
type svmReinitialization struct{}

func (d *svmReinitialization) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:          "REINITIALIZATION",
		Title:       "Reinitialization",
		Description: "Initializer does not check whether the account is already initialized",
		Severity:    model.SeverityHigh,
		Tags:        []string{"initialization"},
	}
}

func (d *svmReinitialization) Analyze(tree *syntax.Tree) []model.Vulnerability {
	var out []model.Vulnerability
	meta := d.Meta()
	for _, fn := range tree.Functions {
		if !initFnRe.MatchString(fn.Name) {
			continue
		}
		if anchorInitGuarded(tree, fn) {
			continue
		}
		write := firstStateWrite(fn.Body)
		if write == nil {
			continue
		}
		if guarded(fn.Body, write, initGuardRe) {
			continue
		}
		out = append(out, newVuln(meta, tree, write.Start,
			fmt.Sprintf("Function %s writes initial state (%s) without checking whether the account is already initialized", fn.Name, shorten(write.Text(), 60)),
			"Check an is_initialized flag or account discriminator first and fail with an AlreadyInitialized error; in Anchor use the `init` constraint rather than `init_if_needed`."))
	}
	return out
}

// anchorInitGuarded reports whether fn takes a Context<T> whose accounts
// struct uses the `init` constraint, which Anchor enforces on its own.
func anchorInitGuarded(tree *syntax.Tree, fn *syntax.Function) bool {
	for _, p := range fn.Params {
		m := contextTypeRe.FindStringSubmatch(p.Type)
		if m == nil {
			continue
		}
		for _, st := range tree.Root.FindAll("struct_item") {
			name := st.ChildByField("name")
			if name == nil || name.Text() != m[1] {
				continue
			}
			text := st.Text()
			if strings.Contains(text, "init_if_needed") {
				return false
			}
			return anchorInitRe.MatchString(text)
		}
	}
	return false
}
