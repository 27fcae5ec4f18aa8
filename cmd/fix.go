package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gnolang/tpat/internal"
	"github.com/gnolang/tpat/internal/fixer"
	"github.com/gnolang/tpat/lint"
)

var dryRun bool

var fixCmd = &cobra.Command{
	Use:   "fix [paths...]",
	Short: "Apply the replacements of the configured rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("please provide file or directory paths")
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		engine, err := newEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		return runAutoFix(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), engine, args, dryRun)
	},
}

func init() {
	fixCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run in dry-run mode (print a diff instead of writing files)")
}

// runAutoFix rewrites every file under paths. Diffs go to out in dry-run
// mode; the summary always goes to summary.
func runAutoFix(ctx context.Context, out, summary io.Writer, engine *internal.Engine, paths []string, dryRun bool) error {
	fx := fixer.New(logger, dryRun, out)

	var (
		errs             error
		applied, skipped int
		files            int
	)
	for _, path := range paths {
		sources, err := lint.SourceFiles(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, filename := range sources {
			if err := ctx.Err(); err != nil {
				return multierr.Append(errs, err)
			}
			report, err := engine.Fix(filename, fx)
			if err != nil {
				logger.Error("error fixing issues", zap.String("file", filename), zap.Error(err))
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", filename, err))
			}
			if report == nil {
				continue
			}
			if len(report.Applied) > 0 {
				files++
			}
			applied += len(report.Applied)
			skipped += len(report.Skipped)
			for _, s := range report.Skipped {
				logger.Info("edit skipped",
					zap.String("file", filename),
					zap.String("rule", s.Edit.Rule),
					zap.String("reason", s.Reason),
				)
			}
		}
	}

	verb := "applied"
	if dryRun {
		verb = "would apply"
	}
	fmt.Fprintf(summary, "%s %d edit(s) in %d file(s), skipped %d\n", verb, applied, files, skipped)
	return errs
}
