package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JijoJohny/SolGuard/internal/model"
)

// FileName is looked up in the scan target and every parent directory.
const FileName = ".solguard.yaml"

// IgnoreRule suppresses findings. An empty Rule matches every rule and an
// empty Path matches every file; Path is a doublestar glob.
type IgnoreRule struct {
	Rule    string `yaml:"rule"`
	Path    string `yaml:"path"`
	Reason  string `yaml:"reason,omitempty"`
	Expires string `yaml:"expires,omitempty"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	SeverityThreshold string       `yaml:"severityThreshold"`
	FailOn            string       `yaml:"failOn,omitempty"`
	Workers           int          `yaml:"workers,omitempty"`
	Exclude           []string     `yaml:"exclude"`
	Ignore            []IgnoreRule `yaml:"ignore,omitempty"`
	DisabledRules     []string     `yaml:"disabledRules,omitempty"`
	RulePacks         []string     `yaml:"rulePacks,omitempty"`
	Logging           Logging      `yaml:"logging"`
}

func Default() Config {
	return Config{
		SeverityThreshold: "info",
		Exclude:           []string{"**/target/**", "**/node_modules/**"},
		Logging:           Logging{Level: "warn", Format: "console"},
	}
}

// Load searches startDir and its parents for FileName and reads the first
// one found. The path of the file used is returned, or "" when defaults
// apply. Environment overrides are applied last.
func Load(startDir string) (Config, string, error) {
	cfg := Default()
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return cfg, "", err
	}
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			cfg, err = LoadFile(candidate)
			return cfg, candidate, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cfg, "", applyEnv(&cfg)
}

// LoadFile reads one config file over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	// rule packs are relative to the config file
	base := filepath.Dir(path)
	for i, p := range cfg.RulePacks {
		if !filepath.IsAbs(p) {
			cfg.RulePacks[i] = filepath.Join(base, p)
		}
	}
	return cfg, applyEnv(&cfg)
}

func (c Config) Validate() error {
	for _, s := range []string{c.SeverityThreshold, c.FailOn} {
		if s == "" {
			continue
		}
		if _, ok := model.LookupSeverity(s); !ok {
			return fmt.Errorf("unknown severity %q", s)
		}
	}
	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SOLGUARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SOLGUARD_FAIL_ON"); v != "" {
		if _, ok := model.LookupSeverity(v); !ok {
			return fmt.Errorf("SOLGUARD_FAIL_ON: unknown severity %q", v)
		}
		cfg.FailOn = v
	}
	if v := os.Getenv("SOLGUARD_WORKERS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return fmt.Errorf("SOLGUARD_WORKERS: invalid value %q", v)
		}
		cfg.Workers = n
	}
	return nil
}

// Write stores cfg at path, refusing to replace an existing file unless
// force is set.
func Write(path string, cfg Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
