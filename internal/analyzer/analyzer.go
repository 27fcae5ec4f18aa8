// Package analyzer exposes a rule registry as a go/analysis pass, so the
// rules can run under go vet, gopls or any other analysis driver.
package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	pathpkg "path"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/tools/go/analysis"

	"github.com/gnolang/tpat/formatter"
	"github.com/gnolang/tpat/internal/nolint"
	"github.com/gnolang/tpat/internal/resolve"
	tt "github.com/gnolang/tpat/internal/types"
	"github.com/gnolang/tpat/pattern"
)

// New returns an analyzer reporting every finding of reg's enabled rules.
// Rules with a replacement come with a suggested fix. Owner-restricted
// rules use the pass's type information.
func New(reg *pattern.Registry) *analysis.Analyzer {
	return &analysis.Analyzer{
		Name: "tpat",
		Doc:  "report code matching structural rules and suggest their rewrites",
		Run: func(pass *analysis.Pass) (interface{}, error) {
			return nil, run(pass, reg)
		},
	}
}

func run(pass *analysis.Pass, reg *pattern.Registry) error {
	s := &pattern.Searcher{Fset: pass.Fset}
	if pass.TypesInfo != nil {
		s.Resolver = &resolve.Owner{Info: pass.TypesInfo}
	}

	var errs error
	for _, file := range pass.Files {
		ignores := nolint.ParseComments(file, pass.Fset)
		for _, f := range reg.Find(s, file) {
			node := f.Match.Node
			if ignores.IsNolint(pass.Fset.Position(node.Pos()), f.Rule.ID) {
				continue
			}
			d := analysis.Diagnostic{
				Pos:      node.Pos(),
				End:      node.End(),
				Category: f.Rule.ID,
				Message:  diagnosticMessage(f.Rule),
			}
			if f.Rule.HasReplacement() {
				fix, err := suggestedFix(pass.Fset, file, f)
				switch {
				case errors.Is(err, pattern.ErrNoAlternative):
					// reported without a suggestion
				case err != nil:
					errs = multierr.Append(errs, err)
				default:
					d.SuggestedFixes = []analysis.SuggestedFix{fix}
				}
			}
			pass.Report(d)
		}
	}
	return errs
}

func diagnosticMessage(r pattern.Rule) string {
	if r.Description != "" {
		return fmt.Sprintf("%s: %s", r.ID, r.Description)
	}
	return fmt.Sprintf("%s: matches %q", r.ID, r.Pattern.Template)
}

// suggestedFix replaces the matched node with the rendered rewrite and
// brings the imports of file along: missing imports the rewrite needs are
// added, and imports it drops are removed once nothing outside the node
// uses them.
func suggestedFix(fset *token.FileSet, file *ast.File, f pattern.Finding) (analysis.SuggestedFix, error) {
	pos, end := f.Match.Node.Pos(), f.Match.Node.End()
	edit, err := pattern.Rewrite(f.Match, &f.Rule)
	if err != nil {
		return analysis.SuggestedFix{}, err
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, edit.New); err != nil {
		return analysis.SuggestedFix{}, fmt.Errorf("rule %s: %w", f.Rule.ID, err)
	}

	msg := "Replace with " + formatter.FirstLine(buf.String())
	if len(edit.AddImports) > 0 {
		msg += " (import " + strings.Join(edit.AddImports, ", ") + ")"
	}
	edits := []analysis.TextEdit{{Pos: pos, End: end, NewText: buf.Bytes()}}
	edits = append(edits, importEdits(file, edit, pos, end)...)
	return analysis.SuggestedFix{Message: msg, TextEdits: edits}, nil
}

// importEdits returns the text edits adding edit's missing imports to file
// and deleting the imports it removes that are unused outside [pos, end).
func importEdits(file *ast.File, edit *pattern.Edit, pos, end token.Pos) []analysis.TextEdit {
	var edits []analysis.TextEdit

	var add []string
	for _, path := range edit.AddImports {
		if importSpec(file, path) == nil {
			add = append(add, strconv.Quote(path))
		}
	}
	if len(add) > 0 {
		edits = append(edits, addImportEdit(file, add))
	}

	for _, path := range edit.RemoveImports {
		spec := importSpec(file, path)
		if spec == nil || usesImportOutside(file, spec, pos, end) {
			continue
		}
		decl := importDecl(file, spec)
		if decl == nil {
			continue
		}
		if decl.Lparen.IsValid() {
			edits = append(edits, analysis.TextEdit{Pos: spec.Pos(), End: spec.End()})
		} else {
			edits = append(edits, analysis.TextEdit{Pos: decl.Pos(), End: decl.End()})
		}
	}
	return edits
}

// addImportEdit inserts quoted paths into the first import declaration, or
// after the package clause when the file imports nothing.
func addImportEdit(file *ast.File, quoted []string) analysis.TextEdit {
	for _, d := range file.Decls {
		decl, ok := d.(*ast.GenDecl)
		if !ok || decl.Tok != token.IMPORT {
			continue
		}
		if decl.Lparen.IsValid() {
			return analysis.TextEdit{
				Pos:     decl.Lparen + 1,
				End:     decl.Lparen + 1,
				NewText: []byte("\n\t" + strings.Join(quoted, "\n\t")),
			}
		}
		var text strings.Builder
		for _, q := range quoted {
			text.WriteString("import " + q + "\n")
		}
		return analysis.TextEdit{Pos: decl.Pos(), End: decl.Pos(), NewText: []byte(text.String())}
	}
	var text strings.Builder
	for _, q := range quoted {
		text.WriteString("\n\nimport " + q)
	}
	return analysis.TextEdit{Pos: file.Name.End(), End: file.Name.End(), NewText: []byte(text.String())}
}

func importSpec(file *ast.File, path string) *ast.ImportSpec {
	for _, imp := range file.Imports {
		if p, err := strconv.Unquote(imp.Path.Value); err == nil && p == path {
			return imp
		}
	}
	return nil
}

func importDecl(file *ast.File, spec *ast.ImportSpec) *ast.GenDecl {
	for _, d := range file.Decls {
		decl, ok := d.(*ast.GenDecl)
		if !ok || decl.Tok != token.IMPORT {
			continue
		}
		for _, s := range decl.Specs {
			if s == spec {
				return decl
			}
		}
	}
	return nil
}

// usesImportOutside reports whether a selector qualified by spec's name
// appears in file outside [pos, end). Blank and dot imports count as used.
func usesImportOutside(file *ast.File, spec *ast.ImportSpec, pos, end token.Pos) bool {
	path, _ := strconv.Unquote(spec.Path.Value)
	name := pathpkg.Base(path)
	if spec.Name != nil {
		name = spec.Name.Name
	}
	if name == "_" || name == "." {
		return true
	}

	used := false
	ast.Inspect(file, func(n ast.Node) bool {
		if used || n == nil {
			return false
		}
		if n.Pos() >= pos && n.End() <= end {
			return false
		}
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok && id.Name == name && id.Obj == nil {
				used = true
			}
		}
		return !used
	})
	return used
}

// RunAnalyzer runs a on code parsed as a single file named filename and
// returns its diagnostics as issues. The file is type-checked first, with
// imports resolved from source.
func RunAnalyzer(filename, code string, a *analysis.Analyzer) ([]tt.Issue, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, code, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	owner, _ := resolve.Check(fset, file.Name.Name, []*ast.File{file}, nil)

	var issues []tt.Issue
	pass := &analysis.Pass{
		Analyzer:  a,
		Fset:      fset,
		Files:     []*ast.File{file},
		TypesInfo: owner.Info,
		ResultOf:  map[*analysis.Analyzer]interface{}{},
		Report: func(d analysis.Diagnostic) {
			issue := tt.Issue{
				Rule:     d.Category,
				Filename: filename,
				Message:  d.Message,
				Start:    fset.Position(d.Pos),
				End:      fset.Position(d.End),
			}
			if len(d.SuggestedFixes) > 0 && len(d.SuggestedFixes[0].TextEdits) > 0 {
				issue.Suggestion = string(d.SuggestedFixes[0].TextEdits[0].NewText)
			}
			issues = append(issues, issue)
		},
	}

	if _, err := a.Run(pass); err != nil {
		return issues, err
	}
	return issues, nil
}
