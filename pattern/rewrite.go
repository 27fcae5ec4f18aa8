package pattern

import (
	"go/ast"
	"go/token"
	"reflect"
)

// Edit describes replacing one matched node. It is a plain description;
// nothing in the searched tree has been changed when it is returned.
type Edit struct {
	Rule          string
	Old           ast.Node
	New           ast.Node
	Offset        int
	Length        int
	AddImports    []string
	RemoveImports []string
}

// Rewrite builds the edit that replaces m.Node with r's replacement, the
// placeholders of which are filled from m.Bindings. With guarded
// alternatives the first one that holds for m is used. The bound sub-trees
// are moved into the result, so m must not be rewritten twice.
func Rewrite(m Match, r *Rule) (*Edit, error) {
	if r == nil || !r.HasReplacement() {
		return nil, ErrNoReplacement
	}
	alt, err := r.alternativeFor(m)
	if err != nil {
		return nil, err
	}
	repl, err := Compile(alt.Replacement, r.Pattern.Kind.replacementKind())
	if err != nil {
		return nil, err
	}
	return rewrite(m, r, alt, repl)
}

func rewrite(m Match, r *Rule, alt Alternative, repl *Template) (*Edit, error) {
	for _, name := range repl.Placeholders() {
		if _, ok := m.Bindings[name]; !ok {
			return nil, &UnboundPlaceholderError{Rule: r.ID, Name: name}
		}
	}

	s := &substituter{
		t:    repl,
		env:  m.Bindings,
		used: make(map[string]bool),
	}
	if m.Node != nil {
		s.pos = m.Node.Pos()
	}
	v, err := s.subst(reflect.ValueOf(repl.Root), rootSlot(repl.Kind))
	if err != nil {
		return nil, err
	}
	n, _ := v.Interface().(ast.Node)

	return &Edit{
		Rule:          r.ID,
		Old:           m.Node,
		New:           n,
		Offset:        m.Offset,
		Length:        m.Length,
		AddImports:    mergeImports(r.ImportsToAdd, alt.ImportsToAdd),
		RemoveImports: mergeImports(r.ImportsToRemove, alt.ImportsToRemove),
	}, nil
}

func mergeImports(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range lists {
		for _, p := range l {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

var (
	nodeIface = reflect.TypeOf((*ast.Node)(nil)).Elem()
	exprIface = reflect.TypeOf((*ast.Expr)(nil)).Elem()
	stmtIface = reflect.TypeOf((*ast.Stmt)(nil)).Elem()
	declIface = reflect.TypeOf((*ast.Decl)(nil)).Elem()
)

func rootSlot(k Kind) reflect.Type {
	switch k {
	case Expression, MethodCall, Constructor:
		return exprIface
	case Statement:
		return stmtIface
	case MethodDeclaration:
		return declIface
	}
	return nodeIface
}

type substituter struct {
	t    *Template
	env  Bindings
	used map[string]bool
	pos  token.Pos // position given to nodes that come from the template
}

// subst returns a fresh copy of the template value p, with placeholders
// replaced by their bindings, for a slot of type want.
func (s *substituter) subst(p reflect.Value, want reflect.Type) (reflect.Value, error) {
	p = unwrap(p)
	if !p.IsValid() {
		return reflect.Zero(want), nil
	}
	if h, ok := s.singleHole(p); ok {
		return fitSlot(h.Name, reflect.ValueOf(s.take(h.Name)), want)
	}

	switch p.Kind() {
	case reflect.Pointer:
		if p.IsNil() || skipType(p.Type()) {
			return reflect.Zero(want), nil
		}
		elem := p.Elem()
		if elem.Kind() != reflect.Struct {
			return p, nil
		}
		sv, err := s.substStruct(elem)
		if err != nil {
			return reflect.Value{}, err
		}
		c := reflect.New(elem.Type())
		c.Elem().Set(sv)
		return fitSlot("", c, want)

	case reflect.Struct:
		return s.substStruct(p)

	case reflect.Slice:
		if p.IsNil() || skipType(p.Type().Elem()) {
			return reflect.Zero(p.Type()), nil
		}
		et := p.Type().Elem()
		out := reflect.MakeSlice(p.Type(), 0, p.Len())
		for i := 0; i < p.Len(); i++ {
			if h, ok := s.t.listHole(p.Index(i)); ok && h.Multi {
				elems, err := s.fillList(h, et)
				if err != nil {
					return reflect.Value{}, err
				}
				out = reflect.Append(out, elems...)
				continue
			}
			ev, err := s.subst(p.Index(i), et)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
		}
		return out, nil
	}

	if p.Type() == posType {
		if p.Interface().(token.Pos).IsValid() {
			return reflect.ValueOf(s.pos), nil
		}
	}
	return p, nil
}

func (s *substituter) substStruct(p reflect.Value) (reflect.Value, error) {
	var parent ast.Node
	if p.CanAddr() {
		parent, _ = p.Addr().Interface().(ast.Node)
	}

	v := reflect.New(p.Type()).Elem()
	for i := 0; i < p.NumField(); i++ {
		f := p.Type().Field(i)
		_, spliced := s.singleHole(unwrap(p.Field(i)))
		fv, err := s.subst(p.Field(i), f.Type)
		if err != nil {
			return reflect.Value{}, err
		}
		if spliced && parent != nil {
			if x, ok := fv.Interface().(ast.Expr); ok && NeedsParens(x, parent, f.Name) {
				fv = reflect.ValueOf(&ast.ParenExpr{X: x})
			}
		}
		v.Field(i).Set(fv)
	}
	return v, nil
}

// singleHole reports the placeholder p stands for when p is an identifier
// placeholder or a statement consisting of one.
func (s *substituter) singleHole(p reflect.Value) (Placeholder, bool) {
	if !p.IsValid() || p.Kind() != reflect.Pointer || p.IsNil() {
		return Placeholder{}, false
	}
	switch n := p.Interface().(type) {
	case *ast.Ident:
		return s.t.hole(n)
	case *ast.ExprStmt:
		if id, ok := n.X.(*ast.Ident); ok {
			return s.t.hole(id)
		}
	}
	return Placeholder{}, false
}

// take hands out the binding of name. The first use gets the bound node
// itself, later uses get deep copies.
func (s *substituter) take(name string) ast.Node {
	n := s.env[name]
	if s.used[name] {
		return copyNode(n)
	}
	s.used[name] = true
	return n
}

func (s *substituter) fillList(h Placeholder, elemType reflect.Type) ([]reflect.Value, error) {
	n := s.take(h.Name)
	elems, ok := n.(List)
	if !ok {
		elems = List{n}
	}
	out := make([]reflect.Value, 0, len(elems))
	for _, e := range elems {
		v, err := fitSlot(h.Name, reflect.ValueOf(e), elemType)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// fitSlot converts a bound node for a slot of type want. Expressions
// become expression statements where a statement is required, and an
// expression statement gives up its expression where one is required.
func fitSlot(name string, v reflect.Value, want reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(want), nil
	}
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	switch n := v.Interface().(type) {
	case *ast.ExprStmt:
		if x := reflect.ValueOf(n.X); x.Type().AssignableTo(want) {
			return x, nil
		}
	case ast.Expr:
		if exprStmtType.AssignableTo(want) {
			return reflect.ValueOf(&ast.ExprStmt{X: n}), nil
		}
	}
	return reflect.Value{}, &SpliceError{Name: name, Have: v.Type(), Want: want}
}

// copyNode returns a deep copy of n without resolver objects or comments.
func copyNode(n ast.Node) ast.Node {
	if n == nil {
		return nil
	}
	c, _ := copyValue(reflect.ValueOf(n)).Interface().(ast.Node)
	return c
}

func copyValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || skipType(v.Type()) {
			return reflect.Zero(v.Type())
		}
		c := reflect.New(v.Type().Elem())
		c.Elem().Set(copyValue(v.Elem()))
		return c
	case reflect.Interface:
		c := reflect.New(v.Type()).Elem()
		if !v.IsNil() {
			c.Set(copyValue(v.Elem()))
		}
		return c
	case reflect.Struct:
		c := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			c.Field(i).Set(copyValue(v.Field(i)))
		}
		return c
	case reflect.Slice:
		if v.IsNil() || skipType(v.Type().Elem()) {
			return reflect.Zero(v.Type())
		}
		c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			c.Index(i).Set(copyValue(v.Index(i)))
		}
		return c
	}
	return v
}

// NeedsParens reports whether x must be parenthesized to keep its meaning
// when stored in field of parent.
func NeedsParens(x ast.Expr, parent ast.Node, field string) bool {
	var prec int
	switch x := x.(type) {
	case *ast.BinaryExpr:
		prec = x.Op.Precedence()
	case *ast.StarExpr, *ast.UnaryExpr:
		prec = token.UnaryPrec
	default:
		return false
	}

	switch parent := parent.(type) {
	case *ast.BinaryExpr:
		if field == "Y" {
			return prec <= parent.Op.Precedence()
		}
		return field == "X" && prec < parent.Op.Precedence()
	case *ast.StarExpr, *ast.UnaryExpr:
		return prec < token.UnaryPrec
	case *ast.SelectorExpr, *ast.TypeAssertExpr:
		return field == "X" && prec < token.HighestPrec
	case *ast.CallExpr:
		return field == "Fun" && prec < token.HighestPrec
	case *ast.IndexExpr, *ast.IndexListExpr, *ast.SliceExpr:
		return field == "X" && prec < token.HighestPrec
	}
	return false
}
