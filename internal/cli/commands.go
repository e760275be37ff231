package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JijoJohny/SolGuard/internal/config"
	"github.com/JijoJohny/SolGuard/internal/custom"
	"github.com/JijoJohny/SolGuard/internal/engine"
	"github.com/JijoJohny/SolGuard/internal/logging"
	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/plugins"
	"github.com/JijoJohny/SolGuard/internal/report"
	"github.com/JijoJohny/SolGuard/internal/tui"
)

func AddCommands(root *cobra.Command) {
	root.AddCommand(newScanCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newRulesCmd())
}

// ThresholdError is returned by scan when --fail-on is met.
type ThresholdError struct {
	Threshold model.Severity
	Summary   report.CiSummary
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("findings at or above %s: %s", e.Threshold, e.Summary.Message())
}

type scanOptions struct {
	format        string
	outputFile    string
	failOn        string
	minSeverity   string
	configFile    string
	rulePacks     []string
	workers       int
	baseline      string
	writeBaseline string
	useTUI        bool
	logLevel      string
	watch         bool
}

func newScanCmd() *cobra.Command {
	var o scanOptions
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a Solana program (file or directory) for vulnerabilities",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			cmd.SilenceUsage = true
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if o.watch {
				return runWatch(ctx, cmd, path, o)
			}
			return runScan(ctx, cmd, path, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.format, "format", "f", "text", "Output format: text|json|sarif")
	f.StringVarP(&o.outputFile, "output", "o", "", "Write the report to a file instead of stdout")
	f.StringVar(&o.failOn, "fail-on", "", "Exit non-zero if a finding of this severity or higher is found (info|low|medium|high|critical)")
	f.StringVar(&o.minSeverity, "min-severity", "", "Only report findings at or above this severity")
	f.StringVarP(&o.configFile, "config", "c", "", "Config file (default: nearest "+config.FileName+")")
	f.StringArrayVar(&o.rulePacks, "rules", nil, "Custom rule pack (YAML), may be repeated")
	f.IntVar(&o.workers, "workers", 0, "Files analyzed in parallel (default: number of CPUs)")
	f.StringVar(&o.baseline, "baseline", "", "Drop findings whose fingerprint is in this baseline file")
	f.StringVar(&o.writeBaseline, "write-baseline", "", "Write the fingerprints of the reported findings to a baseline file")
	f.BoolVar(&o.useTUI, "tui", false, "Browse the report interactively")
	f.StringVar(&o.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	f.BoolVarP(&o.watch, "watch", "w", false, "Re-scan whenever a .rs file under path changes")
	cmd.MarkFlagsMutuallyExclusive("watch", "tui")
	return cmd
}

func loadConfig(path, configFile string) (config.Config, string, error) {
	if configFile != "" {
		cfg, err := config.LoadFile(configFile)
		return cfg, configFile, err
	}
	return config.Load(path)
}

func runScan(ctx context.Context, cmd *cobra.Command, path string, o scanOptions) error {
	cfg, cfgPath, err := loadConfig(path, o.configFile)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if cfgPath != "" {
		log.Info("using config", zap.String("path", cfgPath))
	}

	failOn := firstNonEmpty(o.failOn, cfg.FailOn)
	minSev := firstNonEmpty(o.minSeverity, cfg.SeverityThreshold)
	for _, s := range []string{failOn, minSev} {
		if s == "" {
			continue
		}
		if _, ok := model.LookupSeverity(s); !ok {
			return fmt.Errorf("unknown severity %q", s)
		}
	}
	workers := cfg.Workers
	if cmd.Flags().Changed("workers") {
		workers = o.workers
	}

	rules := plugins.Builtin()
	rules.Disable(cfg.DisabledRules...)
	ce, err := loadCustom(append(append([]string{}, cfg.RulePacks...), o.rulePacks...))
	if err != nil {
		return err
	}

	an := engine.New(
		engine.WithLogger(log),
		engine.WithWorkers(workers),
		engine.WithRules(rules),
		engine.WithCustomRules(ce),
		engine.WithExclude(cfg.Exclude...),
		engine.WithIgnores(cfg.Ignore...),
	)
	rep, scanErr := an.Analyze(ctx, path)
	if rep == nil {
		return scanErr
	}
	if scanErr != nil {
		log.Warn("scan interrupted, reporting partial results", zap.Error(scanErr))
	}

	if o.baseline != "" {
		b, err := engine.LoadBaseline(o.baseline)
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		rep.Vulnerabilities = b.Filter(rep.Vulnerabilities)
	}
	rep = engine.FilterBySeverity(rep, model.ParseSeverity(minSev))
	report.Sort(rep)

	if o.useTUI {
		if err := tui.Run(rep); err != nil {
			return err
		}
	} else if err := writeReport(cmd, rep, o.format, o.outputFile); err != nil {
		return err
	}
	if o.writeBaseline != "" {
		if err := engine.WriteBaseline(o.writeBaseline, rep.Vulnerabilities); err != nil {
			return err
		}
	}
	if scanErr != nil {
		return scanErr
	}
	if failOn != "" {
		threshold := model.ParseSeverity(failOn)
		if engine.Exceeds(rep, threshold) {
			return &ThresholdError{Threshold: threshold, Summary: report.Summarize(rep)}
		}
	}
	return nil
}

func writeReport(cmd *cobra.Command, rep *model.AnalysisReport, format, outputFile string) error {
	data, err := report.Render(rep, format)
	if err != nil {
		return err
	}
	if outputFile != "" {
		if dir := filepath.Dir(outputFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		return os.WriteFile(outputFile, data, 0o644)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(data), "\n"))
	return err
}

func loadCustom(packs []string) (*custom.Engine, error) {
	ce := custom.NewEngine()
	for _, p := range packs {
		if _, err := ce.LoadFile(p); err != nil {
			return nil, err
		}
	}
	return ce, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsThreshold reports whether err came from --fail-on.
func IsThreshold(err error) bool {
	var te *ThresholdError
	return errors.As(err, &te)
}

// Exit codes of the solguard binary.
const (
	ExitOK       = 0
	ExitFindings = 1
	ExitError    = 2
)

// ExitCode maps the error returned by the root command to a process exit
// code: findings over the --fail-on threshold give ExitFindings, any other
// failure ExitError.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsThreshold(err):
		return ExitFindings
	default:
		return ExitError
	}
}
