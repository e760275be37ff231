package engine

import (
	"github.com/JijoJohny/SolGuard/internal/model"
)

// FilterBySeverity keeps the findings at or above threshold. Warnings are
// kept; suggestions are informational and survive only an info threshold.
func FilterBySeverity(r *model.AnalysisReport, threshold model.Severity) *model.AnalysisReport {
	if threshold == "" || threshold == model.SeverityInfo {
		return r
	}
	out := &model.AnalysisReport{
		Vulnerabilities: []model.Vulnerability{},
		Warnings:        r.Warnings,
		Suggestions:     []model.Suggestion{},
	}
	for _, v := range r.Vulnerabilities {
		if model.SeverityGTE(v.Severity, threshold) {
			out.Vulnerabilities = append(out.Vulnerabilities, v)
		}
	}
	return out
}

// Exceeds reports whether any vulnerability is at or above threshold.
func Exceeds(r *model.AnalysisReport, threshold model.Severity) bool {
	if threshold == "" {
		return false
	}
	for _, v := range r.Vulnerabilities {
		if model.SeverityGTE(v.Severity, threshold) {
			return true
		}
	}
	return false
}
