package fixer

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/tpat/pattern"
)

const readAllSrc = `package main

import (
	"io/ioutil"
	"os"
)

func main() {
	data, _ := ioutil.ReadAll(os.Stdin)
	_ = data
}
`

// editsFor parses src from a file in a temp dir and rewrites every match of
// rule, outermost first.
func editsFor(t *testing.T, src string, rule pattern.Rule) (string, *token.FileSet, *ast.File, []*pattern.Edit) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	require.NoError(t, err)

	var edits []*pattern.Edit
	for _, m := range (&pattern.Searcher{Fset: fset}).FindMatches(file, rule.Pattern) {
		e, err := pattern.Rewrite(m, &rule)
		require.NoError(t, err)
		edits = append(edits, e)
	}
	return path, fset, file, edits
}

var readAllRule = pattern.Rule{
	ID:              "ioutil-readall",
	Pattern:         pattern.Pattern{Template: "ioutil.ReadAll($r)", Kind: pattern.MethodCall},
	Replacement:     "io.ReadAll($r)",
	ImportsToAdd:    []string{"io"},
	ImportsToRemove: []string{"io/ioutil"},
}

func TestFixRewritesFileAndImports(t *testing.T) {
	t.Parallel()
	path, fset, file, edits := editsFor(t, readAllSrc, readAllRule)
	require.Len(t, edits, 1)

	report, err := New(nil, false, nil).Fix(path, fset, file, []byte(readAllSrc), edits)
	require.NoError(t, err)
	assert.Len(t, report.Applied, 1)
	assert.Empty(t, report.Skipped)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(got)
	assert.Contains(t, out, "data, _ := io.ReadAll(os.Stdin)")
	assert.Contains(t, out, `"io"`)
	assert.NotContains(t, out, "ioutil")

	_, err = parser.ParseFile(token.NewFileSet(), "", got, 0)
	assert.NoError(t, err, "fixed file must stay valid Go")
}

func TestFixKeepsImportStillInUse(t *testing.T) {
	t.Parallel()
	src := `package main

import "io/ioutil"

func main() {
	data, _ := ioutil.ReadAll(nil)
	_ = ioutil.Discard
	_ = data
}
`
	path, fset, file, edits := editsFor(t, src, readAllRule)
	_, err := New(nil, false, nil).Fix(path, fset, file, []byte(src), edits)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"io/ioutil"`)
	assert.Contains(t, string(got), `"io"`)
}

func TestFixRejectsOverlappingEdits(t *testing.T) {
	t.Parallel()
	src := `package main

func main() {
	_ = f(f(1))
}
`
	rule := pattern.Rule{
		ID:          "f-to-g",
		Pattern:     pattern.Pattern{Template: "f($x)", Kind: pattern.Expression},
		Replacement: "g($x)",
	}
	path, fset, file, edits := editsFor(t, src, rule)
	require.Len(t, edits, 2)

	report, err := New(nil, false, nil).Fix(path, fset, file, []byte(src), edits)
	require.NoError(t, err)
	require.Len(t, report.Applied, 1)
	require.Len(t, report.Skipped, 1)
	assert.Same(t, edits[0], report.Applied[0], "the outer edit wins")
	assert.Equal(t, "overlaps another edit", report.Skipped[0].Reason)
	assert.Contains(t, string(report.Output), "_ = g(f(1))")
}

func TestFixParenthesizes(t *testing.T) {
	t.Parallel()
	src := `package main

func main() {
	_ = id(a + b) * 2
}
`
	rule := pattern.Rule{
		ID:          "inline-id",
		Pattern:     pattern.Pattern{Template: "id($x)", Kind: pattern.Expression},
		Replacement: "$x",
	}
	path, fset, file, edits := editsFor(t, src, rule)
	report, err := New(nil, false, nil).Fix(path, fset, file, []byte(src), edits)
	require.NoError(t, err)
	assert.Contains(t, string(report.Output), "_ = (a + b) * 2")
}

func TestFixSkipsEditsThatDoNotFit(t *testing.T) {
	t.Parallel()
	src := `package main

func main() {
	buf.Reset()
}
`
	path, fset, file, _ := editsFor(t, src, readAllRule)
	var sel *ast.SelectorExpr
	ast.Inspect(file, func(n ast.Node) bool {
		if s, ok := n.(*ast.SelectorExpr); ok {
			sel = s
		}
		return true
	})
	require.NotNil(t, sel)

	bad := &pattern.Edit{
		Rule:   "bad",
		Old:    sel.Sel,
		New:    &ast.CallExpr{Fun: ast.NewIdent("f")},
		Offset: fset.Position(sel.Sel.Pos()).Offset,
		Length: len("Reset"),
	}
	report, err := New(nil, false, nil).Fix(path, fset, file, []byte(src), []*pattern.Edit{bad})
	require.NoError(t, err)
	assert.Empty(t, report.Applied)
	require.Len(t, report.Skipped, 1)
	assert.Contains(t, report.Skipped[0].Reason, "cannot replace")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, src, string(got), "file is untouched")
}

func TestFixDryRun(t *testing.T) {
	t.Parallel()
	path, fset, file, edits := editsFor(t, readAllSrc, readAllRule)

	var out bytes.Buffer
	report, err := New(nil, true, &out).Fix(path, fset, file, []byte(readAllSrc), edits)
	require.NoError(t, err)
	assert.Len(t, report.Applied, 1)

	diff := out.String()
	assert.Contains(t, diff, "--- "+path)
	assert.Contains(t, diff, "-\tdata, _ := ioutil.ReadAll(os.Stdin)")
	assert.Contains(t, diff, "+\tdata, _ := io.ReadAll(os.Stdin)")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, readAllSrc, string(got), "dry run leaves the file alone")
}

func TestFixWithoutEdits(t *testing.T) {
	t.Parallel()
	path, fset, file, _ := editsFor(t, readAllSrc, readAllRule)
	report, err := New(nil, false, nil).Fix(path, fset, file, []byte(readAllSrc), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Applied)
	assert.Nil(t, report.Output)
}

func TestDiffOfIdenticalSources(t *testing.T) {
	t.Parallel()
	diff, err := Diff("a.go", []byte("package a\n"), []byte("package a\n"))
	require.NoError(t, err)
	assert.Empty(t, diff)
}
