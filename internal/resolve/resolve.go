// Package resolve names the types that own syntax nodes, using facts from
// the Go type checker. It backs owner-restricted rules such as "WriteString
// called on a strings.Builder".
package resolve

import (
	"context"
	"fmt"
	"go/ast"
	"go/importer"
	"go/token"
	"go/types"

	"go.uber.org/multierr"
	"golang.org/x/tools/go/packages"
)

// Owner resolves owners from type information. Owner names are the
// package path and the type name joined by a dot, e.g. "strings.Builder"
// or "net/http.Client". Package-level functions are owned by their
// package path.
type Owner struct {
	Info *types.Info
}

func newInfo() *types.Info {
	return &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
}

// ResolveOwner implements pattern.OwnerResolver.
func (o *Owner) ResolveOwner(n ast.Node) (string, bool) {
	if o == nil || o.Info == nil {
		return "", false
	}
	switch n := n.(type) {
	case *ast.CallExpr:
		return o.callOwner(n)
	case *ast.CompositeLit:
		return typeName(o.Info.TypeOf(n))
	case *ast.FuncDecl:
		if n.Recv == nil || len(n.Recv.List) == 0 {
			return "", false
		}
		return typeName(o.Info.TypeOf(n.Recv.List[0].Type))
	case *ast.ExprStmt:
		return o.ResolveOwner(n.X)
	}
	return "", false
}

// ResolveType implements pattern.TypeResolver. Types are printed with full
// package paths, e.g. "*strings.Builder" or "[]net/http.Header".
func (o *Owner) ResolveType(n ast.Node) (string, bool) {
	if o == nil || o.Info == nil {
		return "", false
	}
	expr, ok := n.(ast.Expr)
	if !ok {
		return "", false
	}
	t := o.Info.TypeOf(expr)
	if t == nil {
		return "", false
	}
	if b, ok := t.(*types.Basic); ok && b.Kind() == types.Invalid {
		return "", false
	}
	return types.TypeString(t, nil), true
}

func (o *Owner) callOwner(call *ast.CallExpr) (string, bool) {
	sel, ok := ast.Unparen(call.Fun).(*ast.SelectorExpr)
	if !ok {
		return "", false
	}
	if s, ok := o.Info.Selections[sel]; ok {
		return typeName(s.Recv())
	}
	if id, ok := sel.X.(*ast.Ident); ok {
		if pkg, ok := o.Info.Uses[id].(*types.PkgName); ok {
			return pkg.Imported().Path(), true
		}
	}
	return "", false
}

func typeName(t types.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	t = types.Unalias(t)
	if ptr, ok := t.(*types.Pointer); ok {
		t = types.Unalias(ptr.Elem())
	}
	named, ok := t.(*types.Named)
	if !ok {
		return "", false
	}
	obj := named.Obj()
	if obj.Pkg() == nil {
		return obj.Name(), true
	}
	return obj.Pkg().Path() + "." + obj.Name(), true
}

// Check type-checks files as package path and returns an Owner over the
// result. Type errors do not stop the check; they are returned alongside
// whatever could be resolved. A nil importer imports from source.
func Check(fset *token.FileSet, path string, files []*ast.File, imp types.Importer) (*Owner, error) {
	if imp == nil {
		imp = importer.ForCompiler(fset, "source", nil)
	}
	var errs error
	conf := types.Config{
		Importer: imp,
		Error: func(err error) {
			errs = multierr.Append(errs, err)
		},
	}
	info := newInfo()
	_, _ = conf.Check(path, fset, files, info)
	return &Owner{Info: info}, errs
}

// Package is a loaded, type-checked package.
type Package struct {
	Path  string
	Fset  *token.FileSet
	Files map[string]*ast.File // by file name
	Owner *Owner
}

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo

// Load loads and type-checks the packages matching patterns, relative to
// dir. Packages with errors are still returned; their errors are combined
// into the returned error.
func Load(ctx context.Context, dir string, patterns ...string) ([]*Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    loadMode,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var (
		out  []*Package
		errs error
	)
	for _, p := range pkgs {
		for _, e := range p.Errors {
			errs = multierr.Append(errs, e)
		}
		lp := &Package{
			Path:  p.PkgPath,
			Fset:  p.Fset,
			Files: make(map[string]*ast.File, len(p.Syntax)),
			Owner: &Owner{Info: p.TypesInfo},
		}
		for _, f := range p.Syntax {
			lp.Files[p.Fset.Position(f.Pos()).Filename] = f
		}
		out = append(out, lp)
	}
	return out, errs
}
