package pattern

import (
	"go/ast"
	"go/constant"
	"go/token"
	"reflect"
)

var (
	identType     = reflect.TypeOf((*ast.Ident)(nil))
	exprStmtType  = reflect.TypeOf((*ast.ExprStmt)(nil))
	basicLitType  = reflect.TypeOf((*ast.BasicLit)(nil))
	objectPtrType = reflect.TypeOf((*ast.Object)(nil))
	scopePtrType  = reflect.TypeOf((*ast.Scope)(nil))
	commentsType  = reflect.TypeOf((*ast.CommentGroup)(nil))
	posType       = reflect.TypeOf(token.NoPos)
)

// meaningfulPos lists position fields whose presence changes what the code
// means, keyed by the struct that holds them.
var meaningfulPos = map[reflect.Type]string{
	reflect.TypeOf(ast.CallExpr{}): "Ellipsis", // f(xs...)
	reflect.TypeOf(ast.TypeSpec{}): "Assign",   // type A = B
}

// skipType reports whether values of type t carry no structure worth
// comparing or copying: resolver objects, scopes and comments.
func skipType(t reflect.Type) bool {
	return t == objectPtrType || t == scopePtrType || t == commentsType
}

type matcher struct {
	t   *Template // nil for plain structural equality
	env Bindings
}

// Match reports whether candidate matches the template and records the
// placeholder bindings in b. The contents of b are unspecified when Match
// returns false; callers pass a fresh map per attempt.
func (t *Template) Match(candidate ast.Node, b Bindings) bool {
	if t == nil || candidate == nil || b == nil {
		return false
	}
	m := &matcher{t: t, env: b}
	return m.match(reflect.ValueOf(t.Root), reflect.ValueOf(candidate))
}

func (m *matcher) match(p, v reflect.Value) bool {
	p, v = unwrap(p), unwrap(v)

	if h, ok := m.holeOf(p); ok {
		return m.bind(h, p, v)
	}

	if !p.IsValid() || !v.IsValid() {
		return !p.IsValid() && !v.IsValid()
	}
	if p.Type() != v.Type() {
		return false
	}
	if skipType(p.Type()) {
		return true
	}

	switch p.Kind() {
	case reflect.Pointer:
		if p.IsNil() || v.IsNil() {
			return p.IsNil() && v.IsNil()
		}
		switch p.Type() {
		case identType:
			return p.Interface().(*ast.Ident).Name == v.Interface().(*ast.Ident).Name
		case basicLitType:
			return litEqual(p.Interface().(*ast.BasicLit), v.Interface().(*ast.BasicLit))
		}
		return m.match(p.Elem(), v.Elem())

	case reflect.Struct:
		st := p.Type()
		for i := 0; i < p.NumField(); i++ {
			f := st.Field(i)
			if f.Type == posType {
				if meaningfulPos[st] == f.Name &&
					p.Field(i).Interface().(token.Pos).IsValid() != v.Field(i).Interface().(token.Pos).IsValid() {
					return false
				}
				continue
			}
			if !m.match(p.Field(i), v.Field(i)) {
				return false
			}
		}
		return true

	case reflect.Slice:
		if skipType(p.Type().Elem()) {
			return true
		}
		return m.matchList(p, v)
	}

	return p.Interface() == v.Interface()
}

// unwrap strips interface wrappers; a nil interface becomes the zero Value.
func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v
}

// holeOf reports the single placeholder p stands for. Besides a bare
// identifier, an expression statement holding only a placeholder is a
// statement hole.
func (m *matcher) holeOf(p reflect.Value) (Placeholder, bool) {
	if m.t == nil || !p.IsValid() || p.Kind() != reflect.Pointer || p.IsNil() {
		return Placeholder{}, false
	}
	var (
		h  Placeholder
		ok bool
	)
	switch p.Type() {
	case identType:
		h, ok = m.t.hole(p.Interface().(*ast.Ident))
	case exprStmtType:
		if id, isIdent := p.Interface().(*ast.ExprStmt).X.(*ast.Ident); isIdent {
			h, ok = m.t.hole(id)
		}
	}
	return h, ok && !h.Multi
}

func (m *matcher) bind(h Placeholder, p, v reflect.Value) bool {
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return false
	}
	n, ok := v.Interface().(ast.Node)
	if !ok {
		return false
	}

	if p.Type() == exprStmtType {
		// Statement holes bind whole statements of any shape. A constraint
		// naming an expression type is checked against a bare expression
		// statement's operand instead.
		if _, isStmt := n.(ast.Stmt); !isStmt {
			return false
		}
		if es, isExpr := n.(*ast.ExprStmt); isExpr && !h.accepts(n) && h.accepts(es.X) {
			n = es.X
		}
	} else if p.Type() == identType && v.Type() != identType {
		if _, isExpr := n.(ast.Expr); !isExpr {
			return false
		}
	}

	if !h.accepts(n) {
		return false
	}
	if old, seen := m.env[h.Name]; seen {
		return Equal(old, n)
	}
	m.env[h.Name] = n
	return true
}

// matchList matches two syntax lists. Without a multi placeholder the lists
// correspond element by element. With one, the elements before it match the
// head of the candidate, the elements after it match the tail, and the
// placeholder binds whatever is left in between.
func (m *matcher) matchList(p, v reflect.Value) bool {
	multi := -1
	var h Placeholder
	if m.t != nil {
		for i := 0; i < p.Len(); i++ {
			if ph, ok := m.t.listHole(p.Index(i)); ok && ph.Multi {
				multi, h = i, ph
				break
			}
		}
	}

	if multi < 0 {
		if p.Len() != v.Len() {
			return false
		}
		for i := 0; i < p.Len(); i++ {
			if !m.match(p.Index(i), v.Index(i)) {
				return false
			}
		}
		return true
	}

	suffix := p.Len() - multi - 1
	if v.Len() < multi+suffix {
		return false
	}
	for i := 0; i < multi; i++ {
		if !m.match(p.Index(i), v.Index(i)) {
			return false
		}
	}

	run := make(List, 0, v.Len()-multi-suffix)
	for i := multi; i < v.Len()-suffix; i++ {
		n, ok := unwrap(v.Index(i)).Interface().(ast.Node)
		if !ok || !h.accepts(n) {
			return false
		}
		run = append(run, n)
	}
	if old, seen := m.env[h.Name]; seen {
		if !Equal(old, run) {
			return false
		}
	} else {
		m.env[h.Name] = run
	}

	for i := 0; i < suffix; i++ {
		if !m.match(p.Index(multi+1+i), v.Index(v.Len()-suffix+i)) {
			return false
		}
	}
	return true
}

// litEqual compares literals by value, so 0x10 equals 16 and "a" equals `a`.
func litEqual(x, y *ast.BasicLit) bool {
	if x.Kind != y.Kind {
		return false
	}
	if x.Value == y.Value {
		return true
	}
	cx := constant.MakeFromLiteral(x.Value, x.Kind, 0)
	cy := constant.MakeFromLiteral(y.Value, y.Kind, 0)
	if cx.Kind() == constant.Unknown || cy.Kind() == constant.Unknown {
		return false
	}
	return constant.Compare(cx, token.EQL, cy)
}
