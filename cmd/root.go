package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gnolang/tpat/internal"
	"github.com/gnolang/tpat/internal/rules"
	"github.com/gnolang/tpat/lint"
)

const defaultTimeout = 5 * time.Minute

var (
	cfgFile string
	timeout time.Duration
	verbose bool

	enableRules  string
	disableRules string
	ignorePaths  string

	logger = zap.NewNop()
)

// ErrIssuesFound is returned by find when at least one issue was reported.
var ErrIssuesFound = errors.New("issues found")

var rootCmd = &cobra.Command{
	Use:              "tpat [paths...]",
	Short:            "tpat - structural search and rewrite for Go and Gno sources",
	TraverseChildren: true, // Prioritize subcommands
	SilenceUsage:     true,
	SilenceErrors:    true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		// tpat [path1 path2 ...] behaves like the find subcommand
		return findCmd.RunE(cmd, args)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", rules.DefaultConfigFile, "Path to the rule configuration file")
	flags.DurationVar(&timeout, "timeout", defaultTimeout, "Give up after this long")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	flags.StringVar(&enableRules, "enable", "", "Comma-separated list of rules to enable")
	flags.StringVar(&disableRules, "disable", "", "Comma-separated list of rules to skip")
	flags.StringVar(&ignorePaths, "ignore-paths", "", "Comma-separated list of paths or globs to skip")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(watchCmd)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// newEngine builds the engine for the current flags.
func newEngine() (*internal.Engine, error) {
	engine, err := lint.New(logger, cfgFile)
	if err != nil {
		return nil, err
	}

	reg := engine.Registry()
	for _, id := range splitList(enableRules) {
		if err := reg.SetEnabled(id, true); err != nil {
			return nil, err
		}
	}
	for _, id := range splitList(disableRules) {
		engine.IgnoreRule(id)
	}
	for _, path := range splitList(ignorePaths) {
		engine.IgnorePath(path)
	}
	return engine, nil
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// configDependencies lists the files whose change invalidates cached issues.
func configDependencies() []string {
	if _, err := os.Stat(cfgFile); err != nil {
		return nil
	}
	return []string{cfgFile}
}
