package report

import (
	"fmt"

	"github.com/JijoJohny/SolGuard/internal/model"
)

// CiSummary counts vulnerabilities by severity across one or more reports.
type CiSummary struct {
	TotalIssues int  `json:"totalIssues"`
	Critical    int  `json:"criticalIssues"`
	High        int  `json:"highIssues"`
	Medium      int  `json:"mediumIssues"`
	Low         int  `json:"lowIssues"`
	Info        int  `json:"infoIssues"`
	Success     bool `json:"success"`
}

// Summarize passes when no critical or high vulnerability is present.
func Summarize(reports ...*model.AnalysisReport) CiSummary {
	var s CiSummary
	for _, r := range reports {
		if r == nil {
			continue
		}
		for _, v := range r.Vulnerabilities {
			s.TotalIssues++
			switch v.Severity {
			case model.SeverityCritical:
				s.Critical++
			case model.SeverityHigh:
				s.High++
			case model.SeverityMedium:
				s.Medium++
			case model.SeverityLow:
				s.Low++
			default:
				s.Info++
			}
		}
	}
	s.Success = s.Critical == 0 && s.High == 0
	return s
}

func (s CiSummary) Message() string {
	if s.Success {
		return fmt.Sprintf("Security analysis passed (%d issues)", s.TotalIssues)
	}
	return fmt.Sprintf("Security analysis failed: %d critical, %d high, %d medium, %d low, %d info issues found",
		s.Critical, s.High, s.Medium, s.Low, s.Info)
}
