package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint computes a stable key for a finding from its rule, file and
// the whitespace-normalized flagged line. Line numbers are left out.
func Fingerprint(ruleID, file, line string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", ruleID, file, strings.Join(strings.Fields(line), " "))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
