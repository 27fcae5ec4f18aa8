package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/tpat/formatter"
	"github.com/gnolang/tpat/internal"
	tt "github.com/gnolang/tpat/internal/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Report issues in files as they are saved",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine, err := newEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}
		return runWatch(ctx, cmd.OutOrStdout(), engine, args)
	},
}

// runWatch blocks until ctx is done.
func runWatch(ctx context.Context, out io.Writer, engine *internal.Engine, dirs []string) error {
	w := internal.NewWatcher(engine, logger, func(filename string, issues []tt.Issue) {
		if len(issues) == 0 {
			fmt.Fprintf(out, "%s: ok\n", filename)
			return
		}
		sourceCode, err := internal.ReadSourceCode(filename)
		if err != nil {
			logger.Warn("Error reading source file", zap.String("file", filename), zap.Error(err))
		}
		fmt.Fprint(out, formatter.GenerateFormattedIssue(issues, sourceCode))
	})
	if err := w.Start(ctx, dirs...); err != nil {
		return err
	}
	logger.Info("watching", zap.Strings("dirs", dirs))
	w.Wait()
	return nil
}
