package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lcu-tools/lcudump/internal/analyzer"
	"github.com/lcu-tools/lcudump/internal/config"
	"github.com/lcu-tools/lcudump/internal/discovery"
	"github.com/lcu-tools/lcudump/internal/history"
	"github.com/lcu-tools/lcudump/internal/lcu"
	"github.com/lcu-tools/lcudump/internal/logger"
	"github.com/lcu-tools/lcudump/internal/params"
	"github.com/lcu-tools/lcudump/internal/planner"
	"github.com/lcu-tools/lcudump/internal/printer"
	"github.com/lcu-tools/lcudump/internal/runner"
	"github.com/lcu-tools/lcudump/pkg/endpoint"
)

func runDump(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath, viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := newLogger(cfg)
	out := printer.New()

	lf, err := openLockfile(cmd)
	if err != nil {
		return err
	}
	baseURL := lf.BaseURL()
	timeout := time.Duration(cfg.Runner.TimeoutSeconds * float64(time.Second))
	factory := lcu.NewClientFactory(lf, timeout)

	fromIndex, _ := cmd.Flags().GetString("from-index")
	endpoints, err := loadEndpoints(cmd.Context(), fromIndex, factory, baseURL, log)
	if err != nil {
		return err
	}

	outputDir := cfg.Output.Dir
	if outputDir == "" {
		outputDir = defaultOutputDir()
	}
	// The raw index is persisted before any request runs, so a partial or
	// aborted run can still seed later ones.
	if err := endpoint.WriteIndex(filepath.Join(outputDir, endpoint.IndexFile), endpoints); err != nil {
		return fmt.Errorf("failed to write endpoint index: %w", err)
	}

	methods, removed := enforceWriteSafety(cfg.NormalizedMethods(), cfg.Filters.AllowWrite)
	if len(removed) > 0 {
		out.Warnf("write methods excluded by default: %s (use --allow-write to enable)",
			strings.Join(removed, ", "))
	}

	table, err := loadParamTable(cmd, cfg, log)
	if err != nil {
		return err
	}

	plan := planner.Build(endpoints, planner.Options{
		Includes:       cfg.Filters.Include,
		Excludes:       cfg.Filters.Exclude,
		Methods:        methods,
		Params:         table,
		OutputDir:      outputDir,
		PerEndpointDir: cfg.Output.PerEndpointDir,
	}, log)

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if show, _ := cmd.Flags().GetString("show"); show != "" {
		rx, err := regexp.Compile(show)
		if err != nil {
			return fmt.Errorf("invalid --show regex: %w", err)
		}
		var rows [][]string
		for _, item := range plan.Items {
			if rx.MatchString(item.Method + " " + item.RenderedPath) {
				rows = append(rows, []string{item.Method, item.RenderedPath})
			}
		}
		out.Table([]string{"METHOD", "PATH"}, rows)
		if dryRun {
			return nil
		}
	}
	if dryRun {
		rows := make([][]string, 0, len(plan.Items))
		for _, item := range plan.Items {
			rows = append(rows, []string{item.Method, item.RenderedPath})
		}
		out.Table([]string{"METHOD", "PATH"}, rows)
		return nil
	}

	cancel := runner.NewCancel()
	stopSignals := watchInterrupts(cancel, out)
	defer stopSignals()

	started := time.Now()
	result := runner.Run(context.Background(), plan, runner.ClientFactory(factory), runner.Options{
		BaseURL:     baseURL,
		Timeout:     timeout,
		Attempts:    cfg.Runner.Attempts,
		Concurrency: cfg.Runner.Concurrency,
		JitterMin:   time.Duration(cfg.Runner.JitterMinMS) * time.Millisecond,
		JitterMax:   time.Duration(cfg.Runner.JitterMaxMS) * time.Millisecond,
		UserAgent:   "lcudump/" + version,
	}, cancel, log)

	out.Summary(result, outputDir)
	recordHistory(cfg, baseURL, outputDir, started, result, out)

	switch {
	case result.Failed > 0 && result.OK > 0:
		exitCode = 2
	case result.Failed > 0:
		exitCode = 1
	}
	return nil
}

func newLogger(cfg *config.Config) logger.Logger {
	opts := logger.Options{Level: cfg.Log.Level}
	if cfg.Log.FileLogging.Enable {
		opts.File = &logger.FileOptions{
			Path:       cfg.Log.FileLogging.Path,
			MaxSizeMB:  cfg.Log.FileLogging.MaxSizeMB,
			MaxBackups: cfg.Log.FileLogging.MaxBackups,
			MaxAgeDays: cfg.Log.FileLogging.MaxAgeDays,
			Compress:   cfg.Log.FileLogging.Compress,
		}
	}
	return logger.New(opts)
}

func openLockfile(cmd *cobra.Command) (lcu.Lockfile, error) {
	path, _ := cmd.Flags().GetString("lockfile")
	if path == "" {
		found, err := lcu.FindLockfile()
		if err != nil {
			return lcu.Lockfile{}, err
		}
		path = found
	}
	lf, err := lcu.ParseLockfile(path)
	if err != nil {
		return lcu.Lockfile{}, fmt.Errorf("failed to parse lockfile: %w", err)
	}
	return lf, nil
}

func loadEndpoints(ctx context.Context, fromIndex string, factory lcu.ClientFactory, baseURL string, log logger.Logger) ([]endpoint.Endpoint, error) {
	if fromIndex != "" {
		eps, err := endpoint.ReadIndex(fromIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to load --from-index file: %w", err)
		}
		return eps, nil
	}
	return discovery.New(factory(), baseURL, log).Discover(ctx)
}

// loadParamTable builds the parameter table from the user file and, when
// requested, auto-generated parameters mined from a previous dump. User
// entries keep precedence over mined ones.
func loadParamTable(cmd *cobra.Command, cfg *config.Config, log logger.Logger) (params.Table, error) {
	var table params.Table

	if paramsFile, _ := cmd.Flags().GetString("params-file"); paramsFile != "" {
		loaded, err := params.LoadTable(paramsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load params file: %w", err)
		}
		table = loaded
	}

	autoDir, _ := cmd.Flags().GetString("auto-params-from")
	if autoDir == "" {
		return table, nil
	}

	autoPath := filepath.Join(autoDir, analyzer.AutoParamsFile)
	if _, err := os.Stat(autoPath); err != nil {
		if err := generateAutoParams(autoDir, cfg, log); err != nil {
			log.Warn("failed to generate auto params", "dir", autoDir, "error", err)
		}
	}
	if _, err := os.Stat(autoPath); err != nil {
		return table, nil
	}

	auto, err := params.LoadTable(autoPath)
	if err != nil {
		log.Warn("failed to load auto params", "path", autoPath, "error", err)
		return table, nil
	}
	return params.Merge(table, auto), nil
}

// generateAutoParams mines a previous dump and writes params.autogen.json
// into it. Requires the dump's endpoint index for the template list.
func generateAutoParams(dir string, cfg *config.Config, log logger.Logger) error {
	pool, err := params.Mine(dir)
	if err != nil {
		return err
	}
	eps, err := endpoint.ReadIndex(filepath.Join(dir, endpoint.IndexFile))
	if err != nil {
		return fmt.Errorf("dump has no usable endpoint index: %w", err)
	}
	autogen := params.Expand(eps, pool, cfg.AutoParams.Limit, params.Mode(cfg.AutoParams.Mode))
	if len(autogen) == 0 {
		log.Debug("no auto params could be mined", "dir", dir)
		return nil
	}
	return writeAutoParams(dir, autogen)
}

func defaultOutputDir() string {
	stamp := time.Now().Format("20060102_150405")
	return filepath.Join(".", "lcu_dump", stamp)
}

// enforceWriteSafety strips mutating methods unless explicitly allowed and
// reports what was removed. An emptied selection falls back to GET.
func enforceWriteSafety(methods []string, allowWrite bool) (selected, removed []string) {
	if allowWrite {
		return methods, nil
	}
	for _, m := range methods {
		if m == "GET" {
			selected = append(selected, m)
		} else {
			removed = append(removed, m)
		}
	}
	if len(selected) == 0 {
		selected = []string{"GET"}
	}
	return selected, removed
}

// watchInterrupts wires the two-stage interrupt behavior: the first signal
// cancels cooperatively, a second force-exits without cleanup.
func watchInterrupts(cancel *runner.Cancel, out *printer.Printer) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		out.Warnf("interrupt received, finishing in-flight requests (interrupt again to force quit)")
		cancel.Signal()
		<-sigCh
		os.Exit(130)
	}()
	return func() { signal.Stop(sigCh) }
}

func recordHistory(cfg *config.Config, baseURL, outputDir string, started time.Time, result runner.Result, out *printer.Printer) {
	if !cfg.History.Enable {
		return
	}
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	store, err := history.Open(path)
	if err != nil {
		out.Warnf("history disabled: %v", err)
		return
	}
	defer store.Close()
	_, err = store.Record(history.Run{
		StartedAt:  started,
		BaseURL:    baseURL,
		OutputDir:  outputDir,
		Total:      result.Total,
		OK:         result.OK,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
		BodyBytes:  result.BodyBytes,
		DurationMs: time.Since(started).Milliseconds(),
	})
	if err != nil {
		out.Warnf("failed to record run history: %v", err)
	}
}
