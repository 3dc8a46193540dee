package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// exitCode carries the process exit status for non-fatal degraded outcomes
// (partial success is 2, total failure 1).
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "lcudump",
	Short: "Dump the League Client (LCU) API surface to JSON files",
	Long: `lcudump discovers every endpoint the local League Client exposes, fetches
them concurrently, and stores each response with metadata for offline
inspection. Write operations are blocked unless explicitly enabled.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDump,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lcudump version %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Configuration file path")
	pf.StringP("log-level", "l", "", "Log level (trace, debug, info, warn, error, fatal, panic)")
	pf.String("lockfile", "", "Explicit client lockfile path (default: auto-detect)")

	f := rootCmd.Flags()
	f.StringArrayP("include", "i", nil, "Glob/regex path filters to include (e.g. /lol-summoner/** or ^/lol-chat/.*)")
	f.StringArrayP("exclude", "e", nil, "Glob/regex path filters to exclude")
	f.StringSliceP("methods", "m", nil, "Comma-separated HTTP methods to include (default GET)")
	f.Bool("allow-write", false, "Allow mutating methods (POST/PUT/PATCH/DELETE); default is read-only")
	f.StringP("output", "o", "", "Output directory (default ./lcu_dump/{YYYYMMDD_HHMMSS})")
	f.Int("concurrency", 0, "Number of concurrent requests")
	f.Float64("timeout", 0, "Per-request timeout in seconds")
	f.Int("retry", 0, "Total attempts per request with backoff")
	f.String("params-file", "", "JSON/YAML file with path parameter expansions")
	f.String("from-index", "", "Load endpoints from a saved endpoints_index.json instead of discovering")
	f.String("auto-params-from", "", "Mine parameters from a previous dump directory")
	f.Int("auto-params-limit", 0, "Max parameter combinations per templated path")
	f.String("auto-params-mode", "", "Combine placeholder values by index (zip) or cross-product (cartesian)")
	f.Bool("per-endpoint-dir", false, "Store each endpoint in its own folder as response.json + meta.json")
	f.Bool("dry-run", false, "Show the exact request plan without executing it")
	f.String("show", "", "Regex to preview plan items (applied to \"METHOD PATH\")")

	bindFlags(rootCmd)

	rootCmd.AddCommand(listCmd, analyzeCmd, historyCmd, versionCmd)
}

func bindFlags(cmd *cobra.Command) {
	v := viper.GetViper()
	v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("filters.include", cmd.Flags().Lookup("include"))
	v.BindPFlag("filters.exclude", cmd.Flags().Lookup("exclude"))
	v.BindPFlag("filters.methods", cmd.Flags().Lookup("methods"))
	v.BindPFlag("filters.allow_write", cmd.Flags().Lookup("allow-write"))
	v.BindPFlag("output.dir", cmd.Flags().Lookup("output"))
	v.BindPFlag("output.per_endpoint_dir", cmd.Flags().Lookup("per-endpoint-dir"))
	v.BindPFlag("runner.concurrency", cmd.Flags().Lookup("concurrency"))
	v.BindPFlag("runner.timeout_seconds", cmd.Flags().Lookup("timeout"))
	v.BindPFlag("runner.attempts", cmd.Flags().Lookup("retry"))
	v.BindPFlag("auto_params.limit", cmd.Flags().Lookup("auto-params-limit"))
	v.BindPFlag("auto_params.mode", cmd.Flags().Lookup("auto-params-mode"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
