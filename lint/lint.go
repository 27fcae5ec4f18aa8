package lint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/tpat/internal"
	"github.com/gnolang/tpat/internal/rules"
	tt "github.com/gnolang/tpat/internal/types"
	"github.com/gnolang/tpat/scanner"
)

type LintEngine interface {
	Run(filePath string) ([]tt.Issue, error)
	RunSource(source []byte) ([]tt.Issue, error)
	IgnoreRule(rule string)
	IgnorePath(path string)
}

// New builds an engine from the built-in rules and the configuration file
// at configurationPath. A missing configuration file is not an error.
func New(logger *zap.Logger, configurationPath string) (*internal.Engine, error) {
	cfg, err := rules.LoadOptional(configurationPath)
	if err != nil {
		return nil, err
	}
	reg, err := rules.NewRegistry(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid rule configuration: %w", err)
	}
	return internal.NewEngine(logger, reg), nil
}

func ProcessSources(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	sources [][]byte,
	processor func(LintEngine, []byte) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	var allIssues []tt.Issue
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return allIssues, err
		}
		issues, err := processor(engine, source)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing source", zap.Int("source", i), zap.Error(err))
			}
			return nil, err
		}
		allIssues = append(allIssues, issues...)
	}

	return allIssues, nil
}

func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	paths []string,
	processor func(LintEngine, string) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	var allIssues []tt.Issue
	for _, path := range paths {
		issues, err := ProcessPath(ctx, logger, engine, path, processor)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return allIssues, err
		}
		allIssues = append(allIssues, issues...)
	}

	return allIssues, nil
}

// ProcessPath runs processor on path, or on every .go and .gno file below
// it when path is a directory. Files are processed in parallel; a file that
// fails does not stop the others, and every failure is returned together
// with the issues of the files that succeeded. Issues come back ordered by
// file and position.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	path string,
	processor func(LintEngine, string) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	if !info.IsDir() {
		if !hasDesiredExtension(path) {
			return []tt.Issue{}, nil
		}
		issues, err := processor(engine, path)
		if err != nil {
			return []tt.Issue{}, err
		}
		return issues, nil
	}

	files, err := collectFiles(path)
	if err != nil {
		return nil, err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription(path),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(isatty.IsTerminal(os.Stderr.Fd())),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	var (
		mu     sync.Mutex
		issues = []tt.Issue{}
		errs   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, fp := range files {
		if gctx.Err() != nil {
			break
		}
		fp := fp
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fileIssues, err := processor(engine, fp)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", fp, err))
			} else {
				issues = append(issues, fileIssues...)
			}
			_ = bar.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := ctx.Err(); err != nil && !errors.Is(errs, err) {
		errs = multierr.Append(errs, err)
	}
	_ = bar.Finish()

	SortIssues(issues)
	return issues, errs
}

// SourceFiles returns path itself when it is a .go or .gno file, or every
// such file below it when it is a directory.
func SourceFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if info.IsDir() {
		return collectFiles(path)
	}
	if !hasDesiredExtension(path) {
		return nil, nil
	}
	return []string{path}, nil
}

func collectFiles(root string) ([]string, error) {
	return scanner.New(root, ".go", ".gno").Paths()
}

// SortIssues orders issues by file, then by position.
func SortIssues(issues []tt.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Start.Line != b.Start.Line {
			return a.Start.Line < b.Start.Line
		}
		return a.Start.Column < b.Start.Column
	})
}

func ProcessFile(engine LintEngine, filePath string) ([]tt.Issue, error) {
	return engine.Run(filePath)
}

func ProcessSource(engine LintEngine, source []byte) ([]tt.Issue, error) {
	return engine.RunSource(source)
}

var desiredExtensions = map[string]bool{
	".go":  true,
	".gno": true,
}

func hasDesiredExtension(path string) bool {
	return desiredExtensions[filepath.Ext(path)]
}
