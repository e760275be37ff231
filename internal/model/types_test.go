package model

import "testing"

func TestSeverityOrdering(t *testing.T) {
	order := []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if !SeverityGTE(order[i], order[i-1]) || SeverityGTE(order[i-1], order[i]) {
			t.Errorf("%s should outrank %s", order[i], order[i-1])
		}
	}
	if ParseSeverity(" HIGH ") != SeverityHigh || ParseSeverity("bogus") != SeverityInfo {
		t.Error("ParseSeverity")
	}
	if _, ok := LookupSeverity("bogus"); ok {
		t.Error("LookupSeverity accepted bogus")
	}
	var s Severity
	if err := s.UnmarshalText([]byte("Critical")); err != nil || s != SeverityCritical {
		t.Errorf("UnmarshalText = %v, %s", err, s)
	}
	if SeverityMedium.Title() != "Medium" {
		t.Errorf("Title = %s", SeverityMedium.Title())
	}
}

func TestReportMerge(t *testing.T) {
	a := NewReport()
	if !a.Empty() {
		t.Fatal("new report should be empty")
	}
	b := NewReport()
	b.Vulnerabilities = append(b.Vulnerabilities, Vulnerability{RuleID: "X", Location: Location{File: "a.rs", Line: 1, Column: 1}})
	b.Warnings = append(b.Warnings, Warning{Title: "w"})
	a.Merge(b)
	a.Merge(nil)
	if len(a.Vulnerabilities) != 1 || len(a.Warnings) != 1 || a.Empty() {
		t.Errorf("merged = %+v", a)
	}
	if got := a.Vulnerabilities[0].Location.String(); got != "a.rs:1:1" {
		t.Errorf("Location.String = %s", got)
	}
}
