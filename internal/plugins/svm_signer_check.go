package plugins

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

// svmMissingSignerCheck flags functions that change account state while no
// account they receive has had its is_signer flag checked first.
type svmMissingSignerCheck struct{}

func (d *svmMissingSignerCheck) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:          "SIGNER-CHECK",
		Title:       "Missing Signer Check",
		Description: "Account signer status is not verified before use",
		Severity:    model.SeverityHigh,
		Tags:        []string{"accounts", "authorization"},
	}
}

func (d *svmMissingSignerCheck) Analyze(tree *syntax.Tree) []model.Vulnerability {
	var out []model.Vulnerability
	meta := d.Meta()
	for _, fn := range tree.Functions {
		accounts := accountRefs(fn)
		if len(accounts) == 0 {
			continue
		}
		write := firstAccountWrite(fn.Body, accounts)
		if write == nil {
			continue
		}
		var signerRes []*regexp.Regexp
		var names []string
		for _, a := range accounts {
			signerRes = append(signerRes, fieldRe(a.Name, "is_signer"))
			names = append(names, a.Name)
		}
		checked := guardWhere(fn.Body, write, func(text string) bool {
			for _, re := range signerRes {
				if re.MatchString(text) {
					return true
				}
			}
			return false
		})
		if checked {
			continue
		}
		out = append(out, newVuln(meta, tree, write.Start,
			fmt.Sprintf("Function %s changes state (%s) without checking is_signer on any of: %s", fn.Name, shorten(write.Text(), 60), strings.Join(names, ", ")),
			fmt.Sprintf("Require the authorizing account to sign, e.g. `if !%s.is_signer { return Err(ProgramError::MissingRequiredSignature) }`, or use Anchor's Signer<'info>.", names[0]),
		))
	}
	return out
}
