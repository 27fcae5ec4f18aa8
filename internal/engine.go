package internal

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gnolang/tpat/internal/fixer"
	"github.com/gnolang/tpat/internal/nolint"
	"github.com/gnolang/tpat/internal/resolve"
	"github.com/gnolang/tpat/internal/trie"
	tt "github.com/gnolang/tpat/internal/types"
	"github.com/gnolang/tpat/pattern"
)

// Engine runs the rules of a registry over source files.
type Engine struct {
	registry *pattern.Registry
	logger   *zap.Logger
	cache    *Cache
	importer types.Importer

	mu           sync.RWMutex
	ignoredRules map[string]bool
	ignoredDirs  *trie.PathTrie
	ignoredGlobs []string
}

// NewEngine creates an engine over reg. The registry is shared, not copied.
func NewEngine(logger *zap.Logger, reg *pattern.Registry) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:     reg,
		logger:       logger,
		importer:     &sharedImporter{imp: importer.ForCompiler(token.NewFileSet(), "source", nil)},
		ignoredRules: make(map[string]bool),
		ignoredDirs:  trie.New(),
	}
}

// sharedImporter lets concurrent runs reuse the packages imported so far.
type sharedImporter struct {
	mu  sync.Mutex
	imp types.Importer
}

func (s *sharedImporter) Import(path string) (*types.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imp.Import(path)
}

func (e *Engine) Registry() *pattern.Registry {
	return e.registry
}

// SetCache makes Run reuse the issues of files that did not change.
func (e *Engine) SetCache(c *Cache) {
	e.cache = c
}

func (e *Engine) IgnoreRule(rule string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ignoredRules[rule] = true
}

// IgnorePath skips files under path, or matching it as a glob. Globs are
// tried on the whole file name and on its base name.
func (e *Engine) IgnorePath(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if strings.ContainsAny(path, "*?[") {
		e.ignoredGlobs = append(e.ignoredGlobs, filepath.Clean(path))
		return
	}
	e.ignoredDirs.Insert(path)
}

func (e *Engine) isIgnoredRule(rule string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ignoredRules[rule]
}

func (e *Engine) isIgnoredPath(filename string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	filename = filepath.Clean(filename)
	if e.ignoredDirs.Covers(filename) {
		return true
	}
	for _, p := range e.ignoredGlobs {
		if ok, _ := filepath.Match(p, filename); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(filename)); ok {
			return true
		}
	}
	return false
}

// Run checks one .go or .gno file.
func (e *Engine) Run(filename string) ([]tt.Issue, error) {
	if e.isIgnoredPath(filename) {
		return nil, nil
	}
	var key string
	if e.cache != nil {
		key = e.ruleKey()
		if issues, ok := e.cache.Get(filename, key); ok {
			return issues, nil
		}
	}
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	issues, _, err := e.check(filename, src)
	if err == nil && e.cache != nil {
		if cerr := e.cache.Set(filename, key, issues); cerr != nil {
			e.logger.Debug("not caching issues", zap.String("file", filename), zap.Error(cerr))
		}
	}
	return issues, err
}

// ruleKey identifies the rules a run would apply: every enabled rule that
// is not ignored, with everything that shapes its issues.
func (e *Engine) ruleKey() string {
	var active []pattern.Rule
	for _, r := range e.registry.AllRules() {
		if r.Enabled && !e.isIgnoredRule(r.ID) {
			active = append(active, r)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	h := sha256.New()
	for _, r := range active {
		fmt.Fprintf(h, "%s\x00%s\x00%+v\x00%s\x00%+v\x00%s\x00%s\x00%v\x00%v\n",
			r.ID, r.Pattern.Kind, r.Pattern, r.Replacement, r.Alternatives,
			r.Description, r.Severity, r.ImportsToAdd, r.ImportsToRemove)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RunSource checks source that does not live in a file.
func (e *Engine) RunSource(source []byte) ([]tt.Issue, error) {
	issues, _, err := e.check("", source)
	return issues, err
}

// Fix rewrites filename with every suggestion found in it.
func (e *Engine) Fix(filename string, fx *fixer.Fixer) (*fixer.Report, error) {
	if e.isIgnoredPath(filename) {
		return &fixer.Report{}, nil
	}
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	issues, parsed, err := e.check(filename, src)
	if parsed == nil {
		return nil, err
	}
	if err != nil {
		e.logger.Warn("some rules failed, fixing with the rest", zap.String("file", filename), zap.Error(err))
	}
	return fx.Fix(filename, parsed.fset, parsed.file, src, Edits(issues))
}

// Edits returns the edits behind issues, ordered so that an edit enclosing
// another comes first. Among edits starting at the same offset the longer
// one wins; ties keep registry order.
func Edits(issues []tt.Issue) []*pattern.Edit {
	var edits []*pattern.Edit
	for _, is := range issues {
		if is.Edit != nil {
			edits = append(edits, is.Edit)
		}
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Offset != edits[j].Offset {
			return edits[i].Offset < edits[j].Offset
		}
		return edits[i].Length > edits[j].Length
	})
	return edits
}

// RunPackages loads the packages matched by patterns in dir with full type
// information and checks every file in them.
func (e *Engine) RunPackages(ctx context.Context, dir string, patterns ...string) ([]tt.Issue, error) {
	pkgs, loadErr := resolve.Load(ctx, dir, patterns...)
	if len(pkgs) == 0 {
		return nil, loadErr
	}
	if loadErr != nil {
		e.logger.Debug("package loading reported errors", zap.Error(loadErr))
	}

	var (
		issues []tt.Issue
		errs   error
	)
	for _, pkg := range pkgs {
		names := make([]string, 0, len(pkg.Files))
		for name := range pkg.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if e.isIgnoredPath(name) {
				continue
			}
			found, err := e.analyze(&parsedFile{name: name, fset: pkg.Fset, file: pkg.Files[name]}, pkg.Owner)
			errs = multierr.Append(errs, err)
			issues = append(issues, found...)
		}
	}
	return issues, errs
}

type parsedFile struct {
	name string
	fset *token.FileSet
	file *ast.File
}

// check parses src and runs the rules over it. The parsed file is returned
// whenever parsing succeeded, even if some rules failed.
func (e *Engine) check(filename string, src []byte) ([]tt.Issue, *parsedFile, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing file: %w", err)
	}
	pf := &parsedFile{name: filename, fset: fset, file: file}

	var owner pattern.OwnerResolver
	if e.needsTypes() {
		o, err := resolve.Check(fset, file.Name.Name, []*ast.File{file}, e.importer)
		if err != nil {
			e.logger.Debug("type checking incomplete", zap.String("file", filename), zap.Error(err))
		}
		if o != nil {
			owner = o
		}
	}

	issues, err := e.analyze(pf, owner)
	return issues, pf, err
}

func (e *Engine) needsTypes() bool {
	for _, r := range e.registry.AllRules() {
		if r.Enabled && !e.isIgnoredRule(r.ID) && usesTypes(r) {
			return true
		}
	}
	return false
}

// usesTypes reports whether r has an owner or a guard asking for types.
func usesTypes(r pattern.Rule) bool {
	if r.Pattern.Owner != "" || strings.Contains(r.Pattern.Guard, "instanceof") {
		return true
	}
	for _, a := range r.Alternatives {
		if strings.Contains(a.Guard, "instanceof") {
			return true
		}
	}
	return false
}

// analyze turns the registry's findings in one file into issues. A rule
// whose rewrite fails still reports its finding, without a suggestion.
func (e *Engine) analyze(pf *parsedFile, owner pattern.OwnerResolver) ([]tt.Issue, error) {
	s := &pattern.Searcher{Fset: pf.fset, Resolver: owner}
	nolintMgr := nolint.ParseComments(pf.file, pf.fset)

	var (
		issues []tt.Issue
		errs   error
	)
	for _, f := range e.registry.Find(s, pf.file) {
		if e.isIgnoredRule(f.Rule.ID) {
			continue
		}
		start := pf.fset.Position(f.Match.Node.Pos())
		if nolintMgr.IsNolint(start, f.Rule.ID) {
			continue
		}

		issue := tt.Issue{
			Rule:     f.Rule.ID,
			Severity: f.Rule.Severity,
			Filename: pf.name,
			Message:  message(f.Rule),
			Start:    start,
			End:      pf.fset.Position(f.Match.Node.End()),
		}
		if f.Rule.HasReplacement() {
			edit, err := pattern.Rewrite(f.Match, &f.Rule)
			switch {
			case errors.Is(err, pattern.ErrNoAlternative):
				// reported without a suggestion
			case err != nil:
				e.logger.Warn("rewrite failed", zap.String("rule", f.Rule.ID), zap.Error(err))
				errs = multierr.Append(errs, err)
			default:
				issue.Edit = edit
				issue.Suggestion = render(pf.fset, edit.New)
				issue.RequiredImports = edit.AddImports
				issue.RemovedImports = edit.RemoveImports
			}
		}
		issues = append(issues, issue)
	}
	return issues, errs
}

func message(r pattern.Rule) string {
	if r.Description != "" {
		return r.Description
	}
	return fmt.Sprintf("matches %q", r.Pattern.Template)
}

func render(fset *token.FileSet, n ast.Node) string {
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, n); err != nil {
		return ""
	}
	return buf.String()
}

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads the content of a file and returns it as a `SourceCode` struct.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")
	return &SourceCode{Lines: lines}, nil
}
