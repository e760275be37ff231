package plugins

import (
	"fmt"
	"regexp"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

var balanceRe = regexp.MustCompile(`(?i)(lamports|amount|balance|supply|fee|reward|stake|deposit|withdraw|shares|price|total|collateral|debt|liquidity|tokens)`)

var uncheckedOps = map[string]bool{
	"+": true, "-": true, "*": true,
	"+=": true, "-=": true, "*=": true,
}

// svmUncheckedArithmetic flags plain +, - and * on balance-like values.
// checked_*/saturating_* are method calls and never reach this rule.
type svmUncheckedArithmetic struct{}

func (d *svmUncheckedArithmetic) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:          "UNCHECKED-ARITHMETIC",
		Title:       "Unchecked Arithmetic",
		Description: "Arithmetic on token or lamport balances is not overflow-checked",
		Severity:    model.SeverityMedium,
		Tags:        []string{"arithmetic"},
	}
}

func (d *svmUncheckedArithmetic) Analyze(tree *syntax.Tree) []model.Vulnerability {
	var out []model.Vulnerability
	meta := d.Meta()
	for _, fn := range tree.Functions {
		fn.Body.Walk(func(n *syntax.Node) bool {
			if n.Kind != "binary_expression" && n.Kind != "compound_assignment_expr" {
				return true
			}
			op := operator(n)
			if !uncheckedOps[op] || !touchesBalance(n) {
				return true
			}
			out = append(out, newVuln(meta, tree, n.Start,
				fmt.Sprintf("Unchecked %q on a balance in function %s: %s", op, fn.Name, shorten(n.Text(), 80)),
				"Use checked_add/checked_sub/checked_mul (returning an error on None) or saturating_* where clamping is intended."))
			// nested operands belong to the same expression
			return false
		})
	}
	return out
}

func touchesBalance(n *syntax.Node) bool {
	for _, side := range []string{"left", "right"} {
		c := n.ChildByField(side)
		if c == nil {
			continue
		}
		for _, id := range identsRe.FindAllString(c.Text(), -1) {
			if balanceRe.MatchString(id) {
				return true
			}
		}
	}
	return false
}
