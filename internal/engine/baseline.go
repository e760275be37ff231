package engine

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/JijoJohny/SolGuard/internal/model"
)

// Baseline is a set of accepted finding fingerprints. Findings present in
// the baseline are dropped from later scans.
type Baseline struct {
	GeneratedAt  time.Time       `json:"generatedAt"`
	Fingerprints map[string]bool `json:"fingerprints"`
}

// LoadBaseline reads either a bare JSON array of fingerprints or the full
// Baseline object. An empty path yields an empty baseline.
func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Fingerprints: map[string]bool{}}
	if path == "" {
		return b, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	var fp []string
	if err := json.Unmarshal(data, &fp); err == nil {
		for _, f := range fp {
			b.Fingerprints[f] = true
		}
		return b, nil
	}
	var full struct {
		GeneratedAt  time.Time `json:"generatedAt"`
		Fingerprints []string  `json:"fingerprints"`
	}
	if err := json.Unmarshal(data, &full); err != nil {
		return b, err
	}
	b.GeneratedAt = full.GeneratedAt
	for _, f := range full.Fingerprints {
		b.Fingerprints[f] = true
	}
	return b, nil
}

// Filter removes vulnerabilities whose fingerprint is in the baseline.
func (b Baseline) Filter(vs []model.Vulnerability) []model.Vulnerability {
	if len(b.Fingerprints) == 0 {
		return vs
	}
	out := vs[:0:0]
	for _, v := range vs {
		if v.Fingerprint != "" && b.Fingerprints[v.Fingerprint] {
			continue
		}
		out = append(out, v)
	}
	return out
}

// WriteBaseline stores the fingerprints of vs at path.
func WriteBaseline(path string, vs []model.Vulnerability) error {
	seen := make(map[string]bool)
	var arr []string
	for _, v := range vs {
		if v.Fingerprint != "" && !seen[v.Fingerprint] {
			seen[v.Fingerprint] = true
			arr = append(arr, v.Fingerprint)
		}
	}
	sort.Strings(arr)
	out := struct {
		GeneratedAt  time.Time `json:"generatedAt"`
		Fingerprints []string  `json:"fingerprints"`
	}{GeneratedAt: time.Now().UTC(), Fingerprints: arr}
	if out.Fingerprints == nil {
		out.Fingerprints = []string{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
