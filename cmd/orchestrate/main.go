package main

import (
	"log/slog"
	"os"

	"github.com/cyphal-tools/orchestrate/internal/driver"
	"github.com/cyphal-tools/orchestrate/internal/locate"
	"github.com/spf13/cobra"
)

// toolName names the "<TOOL>_PATH" environment variable locate.SearchPath
// consults (spec.md §6 "also resolvable through an environment variable
// of the form <TOOL>_PATH").
const toolName = "orchestrate"

var (
	paths   []string
	verbose int
)

var rootCmd = &cobra.Command{
	Use:     "orchestrate <file>",
	Aliases: []string{"orc"},
	Short:   "Run a declarative process composition from a YAML orc-file",
	Args:    cobra.ExactArgs(1),
	RunE:    run,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&paths, "path", nil, "search directory for external= lookups (repeatable)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase logging verbosity (-v, -vv)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: verbosityLevel(verbose)}))
	slog.SetDefault(logger)

	searchDirs := locate.SearchPath(paths, toolName)
	code := driver.Run(args[0], searchDirs, logger, os.Stdout, os.Stderr)

	// driver.Run's convention (spec.md §6) returns a code that may be
	// negative (interrupted by signal); os.Exit truncates to the OS's
	// native exit-status width, matching the original's sys.exit(-sig_num).
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

func verbosityLevel(v int) slog.Level {
	switch {
	case v >= 2:
		return slog.LevelDebug
	case v == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}
