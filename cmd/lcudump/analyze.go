package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lcu-tools/lcudump/internal/analyzer"
	"github.com/lcu-tools/lcudump/internal/config"
	"github.com/lcu-tools/lcudump/internal/history"
	"github.com/lcu-tools/lcudump/internal/jsonio"
	"github.com/lcu-tools/lcudump/internal/lcu"
	"github.com/lcu-tools/lcudump/internal/params"
	"github.com/lcu-tools/lcudump/internal/printer"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Discover and print all available endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(configPath, viper.GetViper())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log := newLogger(cfg)

		lf, err := openLockfile(cmd)
		if err != nil {
			return err
		}
		timeout := time.Duration(cfg.Runner.TimeoutSeconds * float64(time.Second))
		factory := lcu.NewClientFactory(lf, timeout)

		endpoints, err := loadEndpoints(cmd.Context(), "", factory, lf.BaseURL(), log)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(endpoints))
		for _, e := range endpoints {
			rows = append(rows, []string{e.Method, e.Path})
		}
		printer.New().Table([]string{"METHOD", "PATH"}, rows)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dump-dir>",
	Short: "Analyze a dump: summarize statuses, write pruned indexes and auto params",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dumpDir := args[0]
		limit, _ := cmd.Flags().GetInt("limit")
		mode, _ := cmd.Flags().GetString("mode")
		if mode != "zip" && mode != "cartesian" {
			return fmt.Errorf("invalid mode: %s (want zip or cartesian)", mode)
		}

		statuses, pool, err := analyzer.Summarize(dumpDir)
		if err != nil {
			return fmt.Errorf("analyze failed: %w", err)
		}
		cls, err := analyzer.Classify(dumpDir)
		if err != nil {
			return fmt.Errorf("analyze failed: %w", err)
		}
		if err := analyzer.WriteOutputs(dumpDir, cls, pool, nil, limit, params.Mode(mode)); err != nil {
			return fmt.Errorf("failed to write analysis outputs: %w", err)
		}

		out := printer.New()
		codes := make([]string, 0, len(statuses))
		for code := range statuses {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		rows := make([][]string, 0, len(codes))
		for _, code := range codes {
			rows = append(rows, []string{code, strconv.Itoa(statuses[code])})
		}
		out.Table([]string{"STATUS", "COUNT"}, rows)
		out.Infof("active=%d not_found=%d candidate_keys=%d", len(cls.Active), len(cls.NotFound), len(pool))
		out.Infof("wrote analysis files into %s", dumpDir)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent dump runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(configPath, viper.GetViper())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		path := cfg.History.Path
		if path == "" {
			path = history.DefaultPath()
		}
		store, err := history.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := store.Recent(limit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				fmt.Sprintf("%d/%d ok", r.OK, r.Total),
				strconv.Itoa(r.Failed),
				strconv.Itoa(r.Skipped),
				humanize.Bytes(uint64(r.BodyBytes)),
				r.OutputDir,
			})
		}
		printer.New().Table([]string{"STARTED", "OK", "FAILED", "SKIPPED", "FETCHED", "OUTPUT"}, rows)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Int("limit", 5, "Max parameter combinations per templated path")
	analyzeCmd.Flags().String("mode", "zip", "Combine placeholder values by index (zip) or cross-product (cartesian)")
	historyCmd.Flags().Int("limit", 20, "Number of runs to show")
}

func writeAutoParams(dir string, table params.Table) error {
	return jsonio.WriteFile(filepath.Join(dir, analyzer.AutoParamsFile), table)
}
