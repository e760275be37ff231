package plugins

import (
	"regexp"
	"strings"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

var (
	accountTypeRe = regexp.MustCompile(`\b(AccountInfo|UncheckedAccount)\b`)
	identRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	identsRe      = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	keyOwnerRe    = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\.\s*key\b`)
	checkCallRe   = regexp.MustCompile(`(?i)(check|assert|verify|validate|ensure)`)
)

var checkMacros = map[string]bool{
	"assert":           true,
	"assert_eq":        true,
	"assert_ne":        true,
	"require":          true,
	"require_eq":       true,
	"require_neq":      true,
	"require_keys_eq":  true,
	"require_keys_neq": true,
	"require_gt":       true,
	"require_gte":      true,
}

// accountRef is a name bound to a raw account handle inside one function.
type accountRef struct {
	Name string
	Pos  syntax.Position
}

// accountRefs lists the raw account handles a function works with: typed
// parameters, plus locals pulled out of an account slice parameter.
func accountRefs(fn *syntax.Function) []accountRef {
	var refs []accountRef
	var slices []string
	for _, p := range fn.Params {
		if !accountTypeRe.MatchString(p.Type) {
			continue
		}
		if strings.Contains(p.Type, "[") || strings.HasPrefix(p.Type, "Vec<") {
			slices = append(slices, p.Name)
			continue
		}
		if identRe.MatchString(p.Name) && p.Name != "_" {
			refs = append(refs, accountRef{Name: p.Name, Pos: p.Pos})
		}
	}
	if len(slices) == 0 {
		return refs
	}
	var indexRes []*regexp.Regexp
	for _, s := range slices {
		indexRes = append(indexRes, regexp.MustCompile(`\b`+regexp.QuoteMeta(s)+`\s*\[`))
	}
	for _, let := range fn.Body.FindAll("let_declaration") {
		value, pat := let.ChildByField("value"), let.ChildByField("pattern")
		if value == nil || pat == nil || pat.Kind != "identifier" {
			continue
		}
		vt := value.Text()
		pulled := strings.Contains(vt, "next_account_info")
		for _, re := range indexRes {
			pulled = pulled || re.MatchString(vt)
		}
		if pulled && pat.Text() != "_" {
			refs = append(refs, accountRef{Name: pat.Text(), Pos: let.Start})
		}
	}
	return refs
}

func operator(n *syntax.Node) string {
	if op := n.ChildByField("operator"); op != nil {
		return op.Kind
	}
	return ""
}

func macroName(n *syntax.Node) string {
	m := n.ChildByField("macro")
	if m == nil {
		return ""
	}
	return lastSegment(m.Text())
}

// calleeName returns the last path or method segment of a call's target:
// `Pubkey::find_program_address(..)` and `acc.serialize(..)` give
// find_program_address and serialize.
func calleeName(call *syntax.Node) string {
	f := call.ChildByField("function")
	if f == nil {
		return ""
	}
	switch f.Kind {
	case "field_expression":
		if fld := f.ChildByField("field"); fld != nil {
			return fld.Text()
		}
	case "scoped_identifier":
		if name := f.ChildByField("name"); name != nil {
			return name.Text()
		}
	case "generic_function":
		if inner := f.ChildByField("function"); inner != nil {
			return lastSegment(inner.Text())
		}
	}
	return lastSegment(f.Text())
}

func lastSegment(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "::"); i >= 0 {
		s = s[i+2:]
	}
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func callArgs(call *syntax.Node) []*syntax.Node {
	args := call.ChildByField("arguments")
	if args == nil {
		return nil
	}
	return args.Children
}

// guardWhere reports whether body holds a guard whose text satisfies pred.
// Guards are ==/!= comparisons, if/while/match conditions, check macros and
// calls to check-style helpers. With before set, only guards starting before
// that node count.
func guardWhere(body, before *syntax.Node, pred func(string) bool) bool {
	found := false
	body.Walk(func(n *syntax.Node) bool {
		if found {
			return false
		}
		if before != nil && !n.Before(before) {
			return false
		}
		var text string
		switch n.Kind {
		case "binary_expression":
			if op := operator(n); op == "==" || op == "!=" {
				text = n.Text()
			}
		case "if_expression", "while_expression":
			if c := n.ChildByField("condition"); c != nil {
				text = c.Text()
			}
		case "match_expression":
			if v := n.ChildByField("value"); v != nil {
				text = v.Text()
			}
		case "macro_invocation":
			if checkMacros[macroName(n)] {
				text = n.Text()
			}
		case "call_expression":
			if checkCallRe.MatchString(calleeName(n)) {
				text = n.Text()
			}
		}
		if text != "" && pred(text) {
			found = true
		}
		return !found
	})
	return found
}

func guarded(body, before *syntax.Node, re *regexp.Regexp) bool {
	return guardWhere(body, before, re.MatchString)
}

// fieldRe matches `name.field`, tolerating whitespace around the dot.
func fieldRe(name, field string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\.\s*` + field + `\b`)
}

func wordRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
}

// firstUse returns the first statement of body that mentions name.
func firstUse(body *syntax.Node, name string) *syntax.Node {
	re := wordRe(name)
	for _, stmt := range body.Children {
		if re.MatchString(stmt.Text()) {
			return stmt
		}
	}
	return nil
}

var mutatingCalls = map[string]bool{
	"serialize":               true,
	"try_serialize":           true,
	"pack":                    true,
	"pack_into_slice":         true,
	"copy_from_slice":         true,
	"borrow_mut":              true,
	"try_borrow_mut_data":     true,
	"try_borrow_mut_lamports": true,
	"realloc":                 true,
	"assign":                  true,
	"set_lamports":            true,
	"invoke":                  true,
	"invoke_signed":           true,
}

// firstAccountWrite returns the first node in body that changes state held
// by one of accounts: an assignment to an account-derived place, a mutable
// borrow of account data or lamports, or a CPI.
func firstAccountWrite(body *syntax.Node, accounts []accountRef) *syntax.Node {
	var res []*regexp.Regexp
	for _, a := range accounts {
		res = append(res, wordRe(a.Name))
	}
	mentions := func(s string) bool {
		for _, re := range res {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	}
	var hit *syntax.Node
	body.Walk(func(n *syntax.Node) bool {
		if hit != nil {
			return false
		}
		switch n.Kind {
		case "assignment_expression", "compound_assignment_expr":
			left := n.ChildByField("left")
			if left != nil && (mentions(left.Text()) || strings.Contains(left.Text(), "lamports")) {
				hit = n
			}
		case "call_expression":
			name := calleeName(n)
			if name == "invoke" || name == "invoke_signed" || (mutatingCalls[name] && mentions(n.Text())) {
				hit = n
			}
		}
		return hit == nil
	})
	return hit
}

// firstStateWrite is the account-agnostic form used for initializers:
// field assignments and serialization calls.
func firstStateWrite(body *syntax.Node) *syntax.Node {
	var hit *syntax.Node
	body.Walk(func(n *syntax.Node) bool {
		if hit != nil {
			return false
		}
		switch n.Kind {
		case "assignment_expression", "compound_assignment_expr":
			if left := n.ChildByField("left"); left != nil && (left.Kind == "field_expression" || left.Kind == "unary_expression" || left.Kind == "index_expression") {
				hit = n
			}
		case "call_expression":
			switch calleeName(n) {
			case "serialize", "try_serialize", "pack", "pack_into_slice", "copy_from_slice", "exit":
				hit = n
			}
		}
		return hit == nil
	})
	return hit
}

// bindingName returns the first identifier bound by a let pattern.
func bindingName(pat *syntax.Node) string {
	switch pat.Kind {
	case "identifier":
		return pat.Text()
	case "tuple_pattern":
		for _, c := range pat.Children {
			if c.Kind == "identifier" && c.Text() != "_" {
				return c.Text()
			}
		}
	}
	return ""
}

// letBinding finds the let statement in body that binds name before node.
func letBinding(body, before *syntax.Node, name string) *syntax.Node {
	var found *syntax.Node
	for _, let := range body.FindAll("let_declaration") {
		if before != nil && !let.Before(before) {
			continue
		}
		pat := let.ChildByField("pattern")
		if pat != nil && pat.Kind == "identifier" && pat.Text() == name {
			found = let
		}
	}
	return found
}

func newVuln(meta model.RuleMeta, tree *syntax.Tree, at syntax.Position, description, recommendation string) model.Vulnerability {
	return model.Vulnerability{
		RuleID:         meta.ID,
		Severity:       meta.Severity,
		Title:          meta.Title,
		Description:    description,
		Location:       model.Location{File: tree.Path, Line: at.Line, Column: at.Column},
		Recommendation: recommendation,
		Snippet:        strings.TrimSpace(tree.Line(at.Line)),
	}
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
