package plugins

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

var (
	sysvarFromAccountRe = regexp.MustCompile(`\b(Clock|Rent|EpochSchedule|Fees|RecentBlockhashes|SlotHashes|SlotHistory|StakeHistory|Instructions|EpochRewards|LastRestartSlot)\b`)
	sysvarIDRe          = regexp.MustCompile(`check_id|::id\s*\(\s*\)|::ID\b|sysvar::`)
	sysvarDataRe        = regexp.MustCompile(`(?i)(sysvar|clock|rent|instructions)`)
)

// uncheckedIntrospection are instruction-sysvar helpers that read whatever
// account they are handed.
var uncheckedIntrospection = map[string]bool{
	"load_instruction_at": true,
	"load_current_index":  true,
}

// svmSysvarSpoofing flags sysvars deserialized from caller-supplied accounts
// without validating the account key.
type svmSysvarSpoofing struct{}

func (d *svmSysvarSpoofing) Meta() model.RuleMeta {
	return model.RuleMeta{
		ID:          "SYSVAR-SPOOFING",
		Title:       "Sysvar Spoofing",
		Description: "System variable is read from a caller-supplied account instead of the runtime accessor",
		Severity:    model.SeverityHigh,
		Tags:        []string{"sysvar"},
	}
}

func (d *svmSysvarSpoofing) Analyze(tree *syntax.Tree) []model.Vulnerability {
	var out []model.Vulnerability
	meta := d.Meta()
	for _, fn := range tree.Functions {
		for _, call := range fn.Body.FindAll("call_expression") {
			what, ok := sysvarRead(call)
			if !ok {
				continue
			}
			// the account (or its data) is always the last argument
			if args := callArgs(call); len(args) > 0 {
				src := accountRoot(args[len(args)-1].Text())
				if src != "" && sysvarKeyChecked(fn.Body, src) {
					continue
				}
			}
			name := calleeName(call)
			if what == "" {
				what = name
			}
			out = append(out, newVuln(meta, tree, call.Start,
				fmt.Sprintf("%s in function %s reads %s from an account supplied by the caller", shorten(call.Text(), 60), fn.Name, what),
				"Read sysvars through the runtime (e.g. `Clock::get()?`, `Rent::get()?`), use the *_checked instruction introspection helpers, or verify the account key with `sysvar::<name>::check_id`."))
		}
	}
	return out
}

// sysvarRead classifies call as a sysvar read from an account. The returned
// string names the sysvar when known.
func sysvarRead(call *syntax.Node) (string, bool) {
	name := calleeName(call)
	f := call.ChildByField("function")
	if f == nil {
		return "", false
	}
	switch {
	case name == "from_account_info":
		if m := sysvarFromAccountRe.FindString(f.Text()); m != "" {
			return m, true
		}
	case uncheckedIntrospection[name]:
		return "", true
	case name == "deserialize" && strings.Contains(f.Text(), "bincode"):
		args := callArgs(call)
		if len(args) > 0 && sysvarDataRe.MatchString(args[0].Text()) {
			return "sysvar data", true
		}
	}
	return "", false
}

// accountRoot pulls the account variable out of an argument such as
// `&accounts[2]`, `clock_info` or `*ix_sysvar.data.borrow()`.
func accountRoot(arg string) string {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "&*")
	arg = strings.TrimPrefix(arg, "mut ")
	return identsRe.FindString(arg)
}

func sysvarKeyChecked(body *syntax.Node, account string) bool {
	re := wordRe(account)
	return guardWhere(body, nil, func(text string) bool {
		return re.MatchString(text) && sysvarIDRe.MatchString(text)
	})
}
