package report

import (
	"encoding/json"
	"sort"

	"github.com/JijoJohny/SolGuard/internal/model"
)

const toolName = "solguard"

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Results     []sarifResult     `json:"results"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name  string      `json:"name"`
	Rules []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name,omitempty"`
	ShortDescription sarifMessage `json:"shortDescription"`
	Help             sarifMessage `json:"help,omitempty"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	Physical sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt    `json:"artifactLocation"`
	Region           sarifRegion `json:"region"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

// warnings go into the run's invocation as tool notifications
type sarifInvocation struct {
	ExecutionSuccessful        bool                `json:"executionSuccessful"`
	ToolExecutionNotifications []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations,omitempty"`
}

func sarifLevel(s model.Severity) string {
	switch s {
	case model.SeverityMedium:
		return "warning"
	case model.SeverityHigh, model.SeverityCritical:
		return "error"
	default:
		return "note"
	}
}

func location(l model.Location) []sarifLoc {
	return []sarifLoc{{Physical: sarifPhys{
		ArtifactLocation: sarifArt{URI: l.File},
		Region:           sarifRegion{StartLine: l.Line, StartColumn: l.Column},
	}}}
}

// ToSARIF encodes r as a SARIF 2.1.0 log. Suggestions become note-level
// results; warnings become tool notifications.
func ToSARIF(r *model.AnalysisReport) ([]byte, error) {
	results := []sarifResult{}
	rules := map[string]sarifRule{}
	for _, v := range r.Vulnerabilities {
		id := v.RuleID
		if id == "" {
			id = v.Title
		}
		if _, ok := rules[id]; !ok {
			rules[id] = sarifRule{
				ID:               id,
				Name:             v.Title,
				ShortDescription: sarifMessage{Text: v.Title},
				Help:             sarifMessage{Text: v.Recommendation},
			}
		}
		res := sarifResult{
			RuleID:    id,
			Level:     sarifLevel(v.Severity),
			Message:   sarifMessage{Text: v.Description},
			Locations: location(v.Location),
		}
		if v.Fingerprint != "" {
			res.PartialFingerprints = map[string]string{"solguard/v1": v.Fingerprint}
		}
		results = append(results, res)
	}
	for _, s := range r.Suggestions {
		results = append(results, sarifResult{
			RuleID:    s.Title,
			Level:     "note",
			Message:   sarifMessage{Text: s.Description},
			Locations: location(s.Location),
		})
	}
	driver := sarifDriver{Name: toolName}
	for _, rule := range rules {
		driver.Rules = append(driver.Rules, rule)
	}
	sort.Slice(driver.Rules, func(i, j int) bool { return driver.Rules[i].ID < driver.Rules[j].ID })

	run := sarifRun{Tool: sarifTool{Driver: driver}, Results: results}
	if len(r.Warnings) > 0 {
		inv := sarifInvocation{ExecutionSuccessful: true}
		for _, w := range r.Warnings {
			inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, sarifNotification{
				Level:     "warning",
				Message:   sarifMessage{Text: w.Title + ": " + w.Description},
				Locations: location(w.Location),
			})
		}
		run.Invocations = []sarifInvocation{inv}
	}
	s := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	return json.MarshalIndent(s, "", "  ")
}
