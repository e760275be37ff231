package engine

import "github.com/JijoJohny/SolGuard/internal/model"

// dedupe drops repeated findings of the same rule, message and position.
// Findings of different rules are never merged.
func dedupe(in []model.Vulnerability) []model.Vulnerability {
	type key struct {
		rule string
		desc string
		loc  model.Location
	}
	seen := make(map[key]bool, len(in))
	out := in[:0]
	for _, v := range in {
		k := key{rule: v.RuleID, desc: v.Description, loc: v.Location}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

func dedupeSuggestions(in []model.Suggestion) []model.Suggestion {
	type key struct {
		title string
		desc  string
		loc   model.Location
	}
	seen := make(map[key]bool, len(in))
	out := in[:0]
	for _, s := range in {
		k := key{title: s.Title, desc: s.Description, loc: s.Location}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
