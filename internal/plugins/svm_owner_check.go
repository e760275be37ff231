package plugins

import (
	"fmt"
	"regexp"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

var ownerHelperRe = regexp.MustCompile(`(?i)(owner|owned_by)`)

// svmMissingOwnerCheck flags raw accounts whose owner program is never
// compared against an expected id. Only the absence of a check is detected,
// so a wrong comparison still passes and unused accounts still fire.
type svmMissingOwnerCheck struct{}

func (d *svmMissingOwnerCheck) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:          "OWNER-CHECK",
		Title:       "Missing Owner Check",
		Description: "Account ownership is not verified before use",
		Severity:    model.SeverityHigh,
		Tags:        []string{"accounts", "ownership"},
	}
}

func (d *svmMissingOwnerCheck) Analyze(tree *syntax.Tree) []model.Vulnerability {
	var out []model.Vulnerability
	meta := d.Meta()
	for _, fn := range tree.Functions {
		for _, acc := range accountRefs(fn) {
			owner := fieldRe(acc.Name, "owner")
			name := wordRe(acc.Name)
			checked := guardWhere(fn.Body, nil, func(text string) bool {
				return owner.MatchString(text)
			}) || ownerHelperCalled(fn.Body, name)
			if checked {
				continue
			}
			at := acc.Pos
			if stmt := firstUse(fn.Body, acc.Name); stmt != nil {
				at = stmt.Start
			}
			out = append(out, newVuln(meta, tree, at,
				fmt.Sprintf("Account ownership of %q is not verified in function %s", acc.Name, fn.Name),
				fmt.Sprintf("Verify the owner before use, e.g. `if %s.owner != program_id { return Err(ProgramError::IncorrectProgramId) }`, or use a typed Anchor Account<'info, T>.", acc.Name),
			))
		}
	}
	return out
}

// ownerHelperCalled catches helpers such as assert_owned_by(acc, id).
func ownerHelperCalled(body *syntax.Node, name *regexp.Regexp) bool {
	for _, call := range body.FindAll("call_expression") {
		if !ownerHelperRe.MatchString(calleeName(call)) {
			continue
		}
		if args := call.ChildByField("arguments"); args != nil && name.MatchString(args.Text()) {
			return true
		}
	}
	return false
}
