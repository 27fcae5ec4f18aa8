package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/tpat/formatter"
	"github.com/gnolang/tpat/internal"
	tt "github.com/gnolang/tpat/internal/types"
	"github.com/gnolang/tpat/lint"
)

var (
	findJSONOutput bool
	outPath        string
	usePackages    bool
	cacheDir       string
)

var findCmd = &cobra.Command{
	Use:     "find [paths...]",
	Aliases: []string{"lint"},
	Short:   "Report every match of the configured rules",
	Long: `Report every match of the configured rules.

With --packages the arguments are package patterns ("./...") loaded with
full type information; otherwise they are files or directories.`,
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

		if cacheDir != "" {
			cache, err := internal.NewCache(cacheDir, 0, configDependencies()...)
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			engine.SetCache(cache)
			defer func() {
				if err := cache.Save(); err != nil {
					logger.Warn("Error saving cache", zap.Error(err))
				}
			}()
		}

		return runFind(ctx, cmd.OutOrStdout(), engine, args)
	},
}

func init() {
	findCmd.Flags().BoolVar(&findJSONOutput, "json", false, "Output issues in JSON format")
	findCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	findCmd.Flags().BoolVar(&usePackages, "packages", false, "Treat arguments as package patterns")
	findCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Reuse the issues of unchanged files across runs")
}

func runFind(ctx context.Context, out io.Writer, engine *internal.Engine, args []string) error {
	var (
		issues []tt.Issue
		err    error
	)
	if usePackages {
		issues, err = engine.RunPackages(ctx, ".", args...)
		lint.SortIssues(issues)
	} else {
		issues, err = lint.ProcessFiles(ctx, logger, engine, args, lint.ProcessFile)
	}
	if err != nil {
		if len(issues) == 0 {
			return err
		}
		logger.Error("Error processing files", zap.Error(err))
	}

	if perr := printIssues(out, issues, findJSONOutput, outPath); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return ErrIssuesFound
	}
	return nil
}

func printIssues(out io.Writer, issues []tt.Issue, isJSON bool, jsonOutput string) error {
	issuesByFile := make(map[string][]tt.Issue)
	for _, issue := range issues {
		issuesByFile[issue.Filename] = append(issuesByFile[issue.Filename], issue)
	}

	if isJSON {
		d, err := json.Marshal(issuesByFile)
		if err != nil {
			return fmt.Errorf("error marshalling issues to JSON: %w", err)
		}
		if jsonOutput == "" {
			_, err = fmt.Fprintln(out, string(d))
			return err
		}
		return os.WriteFile(jsonOutput, d, 0o644)
	}

	sortedFiles := make([]string, 0, len(issuesByFile))
	for filename := range issuesByFile {
		sortedFiles = append(sortedFiles, filename)
	}
	sort.Strings(sortedFiles)

	for _, filename := range sortedFiles {
		sourceCode, err := internal.ReadSourceCode(filename)
		if err != nil {
			logger.Warn("Error reading source file", zap.String("file", filename), zap.Error(err))
		}
		fmt.Fprint(out, formatter.GenerateFormattedIssue(issuesByFile[filename], sourceCode))
	}
	return nil
}
