package fixer

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"io"
	"os"
	"reflect"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/tpat/pattern"
)

// Fixer applies structural edits to parsed files and writes the result, or
// prints it as a diff in dry-run mode.
type Fixer struct {
	DryRun bool
	Out    io.Writer // diff destination in dry-run mode

	logger *zap.Logger
}

func New(logger *zap.Logger, dryRun bool, out io.Writer) *Fixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Fixer{DryRun: dryRun, Out: out, logger: logger}
}

// Skipped is an edit that was not applied.
type Skipped struct {
	Edit   *pattern.Edit
	Reason string
}

// Report summarizes one Fix call.
type Report struct {
	Applied []*pattern.Edit
	Skipped []Skipped
	Output  []byte // the formatted file after the edits
}

// Fix applies edits to file, which must have been parsed from src with
// fset, and writes the formatted result to filename. The file's tree is
// modified in place.
//
// Edits are taken in the order given. An edit overlapping one already
// taken is skipped, so when edits arrive outermost first the outer rewrite
// wins.
func (f *Fixer) Fix(filename string, fset *token.FileSet, file *ast.File, src []byte, edits []*pattern.Edit) (*Report, error) {
	r := &Report{}
	chosen := f.selectEdits(edits, r)
	if len(chosen) == 0 {
		return r, nil
	}

	spliceEdits(file, chosen, r)
	if len(r.Applied) == 0 {
		return r, nil
	}
	FixImports(fset, file, r.Applied)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return r, fmt.Errorf("failed to format %s: %w", filename, err)
	}
	r.Output = buf.Bytes()

	if f.DryRun {
		diff, err := Diff(filename, src, r.Output)
		if err != nil {
			return r, err
		}
		fmt.Fprint(f.Out, diff)
		return r, nil
	}

	if err := os.WriteFile(filename, r.Output, 0o644); err != nil {
		return r, fmt.Errorf("failed to write file: %w", err)
	}
	f.logger.Info("fixed file",
		zap.String("file", filename),
		zap.Int("applied", len(r.Applied)),
		zap.Int("skipped", len(r.Skipped)),
	)
	return r, nil
}

func (f *Fixer) selectEdits(edits []*pattern.Edit, r *Report) []*pattern.Edit {
	var taken []*pattern.Edit
	for _, e := range edits {
		if e == nil || e.Old == nil || e.New == nil {
			continue
		}
		if overlapsAny(e, taken) {
			f.logger.Debug("skipping overlapping edit",
				zap.String("rule", e.Rule),
				zap.Int("offset", e.Offset),
			)
			r.Skipped = append(r.Skipped, Skipped{Edit: e, Reason: "overlaps another edit"})
			continue
		}
		taken = append(taken, e)
	}
	return taken
}

func overlapsAny(e *pattern.Edit, taken []*pattern.Edit) bool {
	for _, t := range taken {
		if e.Offset < t.Offset+t.Length && t.Offset < e.Offset+e.Length {
			return true
		}
	}
	return false
}

// spliceEdits replaces each edit's old node by its new one. Replacements
// that cannot be stored where the old node sits are skipped.
func spliceEdits(file *ast.File, edits []*pattern.Edit, r *Report) {
	byNode := make(map[ast.Node]*pattern.Edit, len(edits))
	for _, e := range edits {
		byNode[e.Old] = e
	}

	astutil.Apply(file, func(c *astutil.Cursor) bool {
		e, ok := byNode[c.Node()]
		if !ok {
			return true
		}
		delete(byNode, c.Node())

		repl := e.New
		if x, isExpr := repl.(ast.Expr); isExpr && pattern.NeedsParens(x, c.Parent(), c.Name()) {
			repl = &ast.ParenExpr{X: x}
		}
		if !fits(c, repl) {
			r.Skipped = append(r.Skipped, Skipped{Edit: e, Reason: fmt.Sprintf("%T cannot replace %T here", repl, e.Old)})
			return false
		}
		c.Replace(repl)
		r.Applied = append(r.Applied, e)
		return false
	}, nil)

	for _, e := range byNode {
		r.Skipped = append(r.Skipped, Skipped{Edit: e, Reason: "node not found in file"})
	}
	sort.SliceStable(r.Skipped, func(i, j int) bool {
		return r.Skipped[i].Edit.Offset < r.Skipped[j].Edit.Offset
	})
}

// fits reports whether n may be stored in the field or slice element the
// cursor points at.
func fits(c *astutil.Cursor, n ast.Node) bool {
	parent := reflect.ValueOf(c.Parent())
	if parent.Kind() != reflect.Pointer || parent.IsNil() {
		return false
	}
	field := parent.Elem().FieldByName(c.Name())
	if !field.IsValid() {
		return false
	}
	slot := field.Type()
	if c.Index() >= 0 {
		slot = slot.Elem()
	}
	return reflect.TypeOf(n).AssignableTo(slot)
}

// Diff renders a unified diff between the original and the fixed source.
func Diff(filename string, before, after []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: filename,
		ToFile:   filename + " (fixed)",
		Context:  3,
	})
}
