package model

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityOrder = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// ParseSeverity maps s to a Severity, falling back to info for unknown input.
func ParseSeverity(s string) Severity {
	if sev, ok := LookupSeverity(s); ok {
		return sev
	}
	return SeverityInfo
}

// LookupSeverity is the strict form of ParseSeverity.
func LookupSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	_, ok := severityOrder[sev]
	return sev, ok
}

func SeverityGTE(a, b Severity) bool {
	return severityOrder[a] >= severityOrder[b]
}

// Rank orders severities from info (0) to critical (4).
func (s Severity) Rank() int { return severityOrder[s] }

// Title returns the capitalized form used in text reports.
func (s Severity) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

func (s *Severity) UnmarshalText(b []byte) error {
	sev, ok := LookupSeverity(string(b))
	if !ok {
		return fmt.Errorf("unknown severity %q", string(b))
	}
	*s = sev
	return nil
}

type RuleMeta struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Tags        []string `json:"tags,omitempty"`
}

// Location is a 1-based source position.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

type Vulnerability struct {
	RuleID         string   `json:"ruleId,omitempty"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Location       Location `json:"location"`
	Recommendation string   `json:"recommendation"`
	Snippet        string   `json:"snippet,omitempty"`
	Fingerprint    string   `json:"fingerprint,omitempty"`
}

type Warning struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
}

type Suggestion struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
}

// AnalysisReport is the result of one scan. It is not modified after it has
// been returned to the caller.
type AnalysisReport struct {
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Warnings        []Warning       `json:"warnings"`
	Suggestions     []Suggestion    `json:"suggestions"`
}

func NewReport() *AnalysisReport {
	return &AnalysisReport{
		Vulnerabilities: []Vulnerability{},
		Warnings:        []Warning{},
		Suggestions:     []Suggestion{},
	}
}

// Merge appends the findings of other to r.
func (r *AnalysisReport) Merge(other *AnalysisReport) {
	if other == nil {
		return
	}
	r.Vulnerabilities = append(r.Vulnerabilities, other.Vulnerabilities...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Suggestions = append(r.Suggestions, other.Suggestions...)
}

func (r *AnalysisReport) Empty() bool {
	return len(r.Vulnerabilities) == 0 && len(r.Warnings) == 0 && len(r.Suggestions) == 0
}
