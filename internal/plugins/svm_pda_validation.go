package plugins

import (
	"fmt"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

// svmPDAValidation flags program-derived addresses that are derived but never
// compared with the account key the caller supplied.
type svmPDAValidation struct{}

func (d *svmPDAValidation) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:          "PDA-VALIDATION",
		Title:       "PDA Validation Error",
		Description: "Program-derived address is not re-derived and compared to the supplied account",
		Severity:    model.SeverityHigh,
		Tags:        []string{"pda"},
	}
}

func (d *svmPDAValidation) Analyze(tree *syntax.Tree) []model.Vulnerability {
	var out []model.Vulnerability
	meta := d.Meta()
	for _, fn := range tree.Functions {
		lets := fn.Body.FindAll("let_declaration")
		for _, call := range fn.Body.FindAll("call_expression") {
			name := calleeName(call)
			if name != "find_program_address" && name != "create_program_address" {
				continue
			}
			if insideGuard(fn.Body, call) {
				continue
			}
			bound := ""
			for _, let := range lets {
				value, pat := let.ChildByField("value"), let.ChildByField("pattern")
				if value != nil && pat != nil && value.Contains(call) {
					bound = bindingName(pat)
					break
				}
			}
			if bound != "" && guarded(fn.Body, nil, wordRe(bound)) {
				continue
			}
			desc := fmt.Sprintf("Address derived with %s in function %s is never compared with the supplied account key", name, fn.Name)
			if bound != "" {
				desc = fmt.Sprintf("PDA %q derived with %s in function %s is never compared with the supplied account key", bound, name, fn.Name)
			}
			out = append(out, newVuln(meta, tree, call.Start, desc,
				"Re-derive the PDA from its seeds and compare it to the account key, e.g. `if pda != *account.key { return Err(ProgramError::InvalidSeeds) }`; prefer the canonical bump from find_program_address."))
		}
	}
	return out
}

// insideGuard reports whether n sits inside a comparison or check macro.
func insideGuard(body, n *syntax.Node) bool {
	found := false
	body.Walk(func(c *syntax.Node) bool {
		if found || !c.Contains(n) {
			return false
		}
		switch c.Kind {
		case "binary_expression":
			if op := operator(c); op == "==" || op == "!=" {
				found = true
			}
		case "macro_invocation":
			found = checkMacros[macroName(c)]
		}
		return !found
	})
	return found
}
