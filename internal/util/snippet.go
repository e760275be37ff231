package util

import (
	"fmt"
	"strings"
)

// SplitLines splits source on "\n" and drops trailing "\r".
func SplitLines(src []byte) []string {
	lines := strings.Split(string(src), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// ExtractSnippet returns the lines within radius of the 1-based line,
// each prefixed with its number and the flagged line marked with ">".
func ExtractSnippet(lines []string, line, radius int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	if radius < 0 {
		radius = 0
	}
	s := max(1, line-radius)
	e := min(len(lines), line+radius)
	width := len(fmt.Sprint(e))
	var b strings.Builder
	for i := s; i <= e; i++ {
		mark := " "
		if i == line {
			mark = ">"
		}
		fmt.Fprintf(&b, "%s %*d | %s\n", mark, width, i, lines[i-1])
	}
	return strings.TrimRight(b.String(), "\n")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
