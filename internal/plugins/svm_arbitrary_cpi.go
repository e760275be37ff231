package plugins

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

// trustedProgramRe matches program ids that are compile-time constants or
// come from a builder that hardcodes its program.
var trustedProgramRe = regexp.MustCompile(`::id\s*\(\s*\)|\bID\b|^id\s*\(\s*\)|^program_id$|^\*?program_id$|system_instruction::|system_program`)

// svmArbitraryCPI flags invoke/invoke_signed calls whose target program
// comes from an account that is never validated.
type svmArbitraryCPI struct{}

func (d *svmArbitraryCPI) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:          "ARBITRARY-CPI",
		Title:       "Arbitrary CPI",
		Description: "Cross-program invocation target is not validated against an expected program id",
		Severity:    model.SeverityHigh,
		Tags:        []string{"cpi"},
	}
}

func (d *svmArbitraryCPI) Analyze(tree *syntax.Tree) []model.Vulnerability {
	var out []model.Vulnerability
	meta := d.Meta()
	for _, fn := range tree.Functions {
		accounts := map[string]bool{}
		for _, a := range accountRefs(fn) {
			accounts[a.Name] = true
		}
		if len(accounts) == 0 {
			continue
		}
		for _, call := range fn.Body.FindAll("call_expression") {
			name := calleeName(call)
			if name != "invoke" && name != "invoke_signed" {
				continue
			}
			args := callArgs(call)
			if len(args) == 0 {
				continue
			}
			target := resolveProgramID(fn.Body, call, args[0], 0)
			if target == "" || trustedProgramRe.MatchString(target) {
				continue
			}
			// only ids read from an account the caller supplies
			account := programAccount(target)
			if !accounts[account] {
				continue
			}
			re := wordRe(account)
			if guardWhere(fn.Body, call, re.MatchString) {
				continue
			}
			out = append(out, newVuln(meta, tree, call.Start,
				fmt.Sprintf("%s in function %s targets program %q, which is never checked against an expected program id", name, fn.Name, shorten(target, 40)),
				fmt.Sprintf("Compare the program account before invoking, e.g. `if %s.key != &spl_token::id() { return Err(ProgramError::IncorrectProgramId) }`, or use Anchor's Program<'info, T>.", account)))
		}
	}
	return out
}

// resolveProgramID follows an instruction expression back to the text of
// its program id: an Instruction literal's program_id field, the first
// argument of an instruction builder, or either through a let binding.
func resolveProgramID(body, call, expr *syntax.Node, depth int) string {
	if expr == nil || depth > 8 {
		return ""
	}
	switch expr.Kind {
	case "reference_expression":
		return resolveProgramID(body, call, expr.ChildByField("value"), depth+1)
	case "try_expression", "parenthesized_expression":
		if len(expr.Children) > 0 {
			return resolveProgramID(body, call, expr.Children[0], depth+1)
		}
	case "identifier":
		if let := letBinding(body, call, expr.Text()); let != nil {
			return resolveProgramID(body, call, let.ChildByField("value"), depth+1)
		}
		return expr.Text()
	case "struct_expression":
		fields := expr.ChildByField("body")
		if fields == nil {
			return ""
		}
		for _, f := range fields.Children {
			switch f.Kind {
			case "field_initializer":
				if k := f.ChildByField("field"); k != nil && k.Text() == "program_id" {
					return strings.TrimSpace(f.ChildByField("value").Text())
				}
			case "shorthand_field_initializer":
				if f.Text() == "program_id" {
					return "program_id"
				}
			}
		}
	case "call_expression":
		fn := expr.ChildByField("function")
		if fn == nil {
			return ""
		}
		// ix.unwrap(), builder(..).expect("..")
		if fn.Kind == "field_expression" {
			return resolveProgramID(body, call, fn.ChildByField("value"), depth+1)
		}
		if strings.Contains(fn.Text(), "system_instruction::") {
			return fn.Text()
		}
		if args := callArgs(expr); len(args) > 0 {
			return strings.TrimSpace(args[0].Text())
		}
	}
	return ""
}

// programAccount names the variable a program id is read from: the
// receiver of `.key` when present, else the first identifier.
func programAccount(target string) string {
	if m := keyOwnerRe.FindStringSubmatch(target); m != nil {
		return m[1]
	}
	return accountRoot(target)
}
