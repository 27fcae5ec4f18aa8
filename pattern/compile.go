package pattern

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strings"
)

const scaffoldName = "__tpat"

// Template is a compiled pattern or replacement fragment.
type Template struct {
	Kind Kind
	Root ast.Node

	holes map[string]Placeholder
	names []string
}

// Placeholders returns the distinct placeholder names of the template in
// order of first appearance.
func (t *Template) Placeholders() []string {
	return append([]string(nil), t.names...)
}

// hole reports the placeholder an identifier stands for, if any.
func (t *Template) hole(id *ast.Ident) (Placeholder, bool) {
	if id == nil || t.holes == nil {
		return Placeholder{}, false
	}
	p, ok := t.holes[id.Name]
	return p, ok
}

// Compile parses fragment as a template of the given kind. The fragment is
// wrapped in the smallest file that makes it parseable, and the scaffold is
// discarded again after parsing.
func Compile(fragment string, kind Kind) (*Template, error) {
	fail := func(format string, args ...any) (*Template, error) {
		return nil, &CompileError{Fragment: fragment, Kind: kind, Err: fmt.Errorf(format, args...)}
	}
	if strings.TrimSpace(fragment) == "" {
		return fail("empty fragment")
	}

	src, holes, names := rewritePlaceholders(fragment)

	var wrapped string
	switch kind {
	case Expression, MethodCall, Constructor:
		wrapped = fmt.Sprintf("package %[1]s\nfunc %[1]s() {\n_ = %[2]s\n}\n", scaffoldName, src)
	case Statement:
		wrapped = fmt.Sprintf("package %[1]s\nfunc %[1]s() {\n%[2]s\n}\n", scaffoldName, src)
	case MethodDeclaration:
		wrapped = fmt.Sprintf("package %s\n%s\n", scaffoldName, src)
	default:
		return nil, &CompileError{Fragment: fragment, Kind: kind, Err: ErrUnknownKind}
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, scaffoldName+".go", wrapped, parser.SkipObjectResolution)
	if err != nil {
		return nil, &CompileError{Fragment: fragment, Kind: kind, Err: err}
	}

	root, err := scaffoldRoot(file, kind)
	if err != nil {
		return nil, &CompileError{Fragment: fragment, Kind: kind, Err: err}
	}

	t := &Template{Kind: kind, Root: root, holes: holes, names: names}
	if err := t.checkMulti(); err != nil {
		return nil, &CompileError{Fragment: fragment, Kind: kind, Err: err}
	}
	return t, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// templates written as constants.
func MustCompile(fragment string, kind Kind) *Template {
	t, err := Compile(fragment, kind)
	if err != nil {
		panic(err)
	}
	return t
}

var errNoScaffold = errors.New("fragment does not produce the expected node")

// scaffoldRoot walks the fixed path from the file down to the fragment. The
// fragment must stay inside its scaffold: one declaration, and for the
// other kinds one statement in the scaffold's body.
func scaffoldRoot(file *ast.File, kind Kind) (ast.Node, error) {
	if len(file.Decls) == 0 {
		return nil, errNoScaffold
	}
	if len(file.Decls) > 1 {
		return nil, fmt.Errorf("%w: fragment spans %d declarations", errNoScaffold, len(file.Decls))
	}
	if kind == MethodDeclaration {
		fn, ok := file.Decls[0].(*ast.FuncDecl)
		if !ok {
			return nil, fmt.Errorf("%w: want function declaration, got %T", errNoScaffold, file.Decls[0])
		}
		return fn, nil
	}

	fn, ok := file.Decls[0].(*ast.FuncDecl)
	if !ok || fn.Name.Name != scaffoldName || fn.Body == nil || len(fn.Body.List) == 0 {
		return nil, errNoScaffold
	}
	if len(fn.Body.List) > 1 {
		return nil, fmt.Errorf("%w: fragment spans %d statements", errNoScaffold, len(fn.Body.List))
	}
	first := fn.Body.List[0]
	if kind == Statement {
		return first, nil
	}

	assign, ok := first.(*ast.AssignStmt)
	if !ok || len(assign.Rhs) != 1 {
		return nil, fmt.Errorf("%w: fragment is not a single expression", errNoScaffold)
	}
	expr := assign.Rhs[0]
	switch kind {
	case MethodCall:
		if _, ok := expr.(*ast.CallExpr); !ok {
			return nil, fmt.Errorf("%w: want call, got %T", errNoScaffold, expr)
		}
	case Constructor:
		if _, ok := expr.(*ast.CompositeLit); !ok {
			return nil, fmt.Errorf("%w: want composite literal, got %T", errNoScaffold, expr)
		}
	}
	return expr, nil
}

// checkMulti rejects multi placeholders outside lists and lists holding more
// than one of them; either would need backtracking to match.
func (t *Template) checkMulti() error {
	total := 0
	ast.Inspect(t.Root, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			if p, ok := t.hole(id); ok && p.Multi {
				total++
			}
		}
		return true
	})
	if total == 0 {
		return nil
	}

	inLists := 0
	var err error
	walkLists(reflect.ValueOf(t.Root), func(list reflect.Value) {
		n := 0
		for i := 0; i < list.Len(); i++ {
			if p, ok := t.listHole(list.Index(i)); ok && p.Multi {
				n++
			}
		}
		if n > 1 && err == nil {
			err = fmt.Errorf("more than one multi placeholder in a single list")
		}
		inLists += n
	})
	if err != nil {
		return err
	}
	if inLists != total {
		return fmt.Errorf("multi placeholder used outside a list")
	}
	return nil
}

// listHole reports whether a list element is a bare placeholder: an
// identifier, or an expression statement or unnamed field wrapping one.
func (t *Template) listHole(v reflect.Value) (Placeholder, bool) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return Placeholder{}, false
	}
	switch n := v.Interface().(type) {
	case *ast.Ident:
		return t.hole(n)
	case *ast.ExprStmt:
		if id, ok := n.X.(*ast.Ident); ok {
			return t.hole(id)
		}
	case *ast.Field:
		if id, ok := n.Type.(*ast.Ident); ok && len(n.Names) == 0 && n.Tag == nil {
			return t.hole(id)
		}
	}
	return Placeholder{}, false
}

// walkLists calls fn for every slice reachable from v.
func walkLists(v reflect.Value, fn func(reflect.Value)) {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() || skipType(v.Type()) {
			return
		}
		walkLists(v.Elem(), fn)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			walkLists(v.Field(i), fn)
		}
	case reflect.Slice:
		fn(v)
		for i := 0; i < v.Len(); i++ {
			walkLists(v.Index(i), fn)
		}
	}
}
