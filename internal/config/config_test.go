package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSearchesUpward(t *testing.T) {
	root := t.TempDir()
	data := `severityThreshold: medium
failOn: high
exclude:
  - "**/tests/**"
ignore:
  - rule: UNCHECKED-ARITHMETIC
    path: "programs/legacy/**"
disabledRules: [REINITIALIZATION]
rulePacks: [rules/team.yaml]
`
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "programs", "vault", "src")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := Load(sub)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(root, FileName) {
		t.Errorf("path = %q", path)
	}
	if cfg.SeverityThreshold != "medium" || cfg.FailOn != "high" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "**/tests/**" {
		t.Errorf("exclude = %v", cfg.Exclude)
	}
	if len(cfg.Ignore) != 1 || cfg.Ignore[0].Path != "programs/legacy/**" {
		t.Errorf("ignore = %+v", cfg.Ignore)
	}
	if len(cfg.DisabledRules) != 1 || cfg.DisabledRules[0] != "REINITIALIZATION" {
		t.Errorf("disabledRules = %v", cfg.DisabledRules)
	}
	if want := filepath.Join(root, "rules", "team.yaml"); len(cfg.RulePacks) != 1 || cfg.RulePacks[0] != want {
		t.Errorf("rulePacks = %v, want %s", cfg.RulePacks, want)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging default lost: %+v", cfg.Logging)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, path, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Skipf("a %s exists above the temp dir: %s", FileName, path)
	}
	if cfg.FailOn != "" || cfg.SeverityThreshold != "info" || len(cfg.Exclude) == 0 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOLGUARD_LOG_LEVEL", "debug")
	t.Setenv("SOLGUARD_FAIL_ON", "critical")
	t.Setenv("SOLGUARD_WORKERS", "3")
	cfg, _, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" || cfg.FailOn != "critical" || cfg.Workers != 3 {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("SOLGUARD_WORKERS", "many")
	if _, _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for bad SOLGUARD_WORKERS")
	}
}

func TestLoadFileRejectsBadSeverity(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("failOn: severe\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := Write(path, Default(), false); err != nil {
		t.Fatal(err)
	}
	if err := Write(path, Default(), false); err == nil {
		t.Error("second write without force should fail")
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SeverityThreshold != Default().SeverityThreshold || len(cfg.Exclude) != len(Default().Exclude) {
		t.Errorf("round trip = %+v", cfg)
	}
}
