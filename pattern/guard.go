package pattern

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// ErrUnknownGuardFunc is returned when a guard calls a function that is not
// registered.
var ErrUnknownGuardFunc = errors.New("unknown guard function")

// GuardFunc evaluates one guard function call. Arguments are passed as
// written: placeholders keep their sigil ("$x") and string literals keep
// their quotes. Use Unquote to read a literal.
type GuardFunc func(ctx *GuardContext, args []string) bool

// TypeResolver names the type of an expression with full package paths, in
// the form go/types prints it ("*strings.Builder", "[]example.com/m.T").
type TypeResolver interface {
	ResolveType(n ast.Node) (string, bool)
}

// GuardContext is what a guard sees of one match.
type GuardContext struct {
	Match Match
	Fset  *token.FileSet
	// Root is the tree the match was found in. Guards looking at the code
	// around the match need it.
	Root ast.Node
	// Types is nil when no type information is available.
	Types TypeResolver
}

// Binding returns the node bound to a placeholder, written with or without
// its sigils.
func (c *GuardContext) Binding(name string) ast.Node {
	name = strings.TrimSuffix(strings.TrimPrefix(name, sigil), sigil)
	if c == nil || c.Match.Bindings == nil {
		return nil
	}
	return c.Match.Bindings[name]
}

// Guard is a compiled guard expression: guard function calls combined with
// &&, || and !, grouped by parentheses. A bare placeholder tests that it is
// bound, and "$x instanceof T" is short for "instanceof($x, T)".
type Guard struct {
	src  string
	expr guardExpr
}

func (g *Guard) String() string {
	if g == nil {
		return ""
	}
	return g.src
}

// Eval reports whether the guard holds. A nil guard always holds.
func (g *Guard) Eval(ctx *GuardContext) bool {
	if g == nil {
		return true
	}
	return g.expr.eval(ctx)
}

type guardExpr interface {
	eval(ctx *GuardContext) bool
}

type (
	guardAnd  struct{ x, y guardExpr }
	guardOr   struct{ x, y guardExpr }
	guardNot  struct{ x guardExpr }
	guardCall struct {
		name string
		fn   GuardFunc
		args []string
	}
)

func (e guardAnd) eval(ctx *GuardContext) bool { return e.x.eval(ctx) && e.y.eval(ctx) }
func (e guardOr) eval(ctx *GuardContext) bool  { return e.x.eval(ctx) || e.y.eval(ctx) }
func (e guardNot) eval(ctx *GuardContext) bool { return !e.x.eval(ctx) }
func (e guardCall) eval(ctx *GuardContext) bool {
	return e.fn(ctx, e.args)
}

var guardFuncs = struct {
	sync.RWMutex
	m map[string]GuardFunc
}{m: map[string]GuardFunc{
	"instanceof":      guardInstanceOf,
	"matchesAny":      guardMatchesAny,
	"matchesNone":     guardMatchesNone,
	"hasNoSideEffect": guardHasNoSideEffect,
	"referencedIn":    guardReferencedIn,
	"contains":        guardContains,
	"notContains":     func(ctx *GuardContext, args []string) bool { return !guardContains(ctx, args) },
	"otherwise":       func(*GuardContext, []string) bool { return true },
}}

// RegisterGuardFunc makes fn callable from guards as name, replacing any
// function registered under that name. Guards parsed before the call keep
// the function they resolved.
func RegisterGuardFunc(name string, fn GuardFunc) {
	guardFuncs.Lock()
	defer guardFuncs.Unlock()
	guardFuncs.m[name] = fn
}

// GuardFuncs returns the names of the registered guard functions, sorted.
func GuardFuncs() []string {
	guardFuncs.RLock()
	defer guardFuncs.RUnlock()
	names := make([]string, 0, len(guardFuncs.m))
	for name := range guardFuncs.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupGuardFunc(name string) (GuardFunc, bool) {
	guardFuncs.RLock()
	defer guardFuncs.RUnlock()
	fn, ok := guardFuncs.m[name]
	return fn, ok
}

// GuardError reports a guard expression that does not parse.
type GuardError struct {
	Guard string
	Pos   int
	Err   error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard %q at %d: %v", e.Guard, e.Pos, e.Err)
}

func (e *GuardError) Unwrap() error {
	return e.Err
}

// ParseGuard compiles a guard expression.
func ParseGuard(text string) (*Guard, error) {
	p := &guardParser{src: strings.TrimSpace(text)}
	if p.src == "" {
		return nil, &GuardError{Guard: text, Err: errors.New("empty guard")}
	}
	expr, err := p.parseOr()
	if err == nil {
		p.skipSpace()
		if p.pos < len(p.src) {
			err = p.errorf("unexpected %q", p.src[p.pos:])
		}
	}
	if err != nil {
		return nil, err
	}
	return &Guard{src: p.src, expr: expr}, nil
}

// MustParseGuard is like ParseGuard but panics on error.
func MustParseGuard(text string) *Guard {
	g, err := ParseGuard(text)
	if err != nil {
		panic(err)
	}
	return g
}

type guardParser struct {
	src string
	pos int
}

func (p *guardParser) errorf(format string, args ...any) error {
	return &GuardError{Guard: p.src, Pos: p.pos, Err: fmt.Errorf(format, args...)}
}

func (p *guardParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *guardParser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *guardParser) parseOr() (guardExpr, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept("||") {
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = guardOr{x, y}
	}
	return x, nil
}

func (p *guardParser) parseAnd() (guardExpr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.accept("&&") {
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = guardAnd{x, y}
	}
	return x, nil
}

func (p *guardParser) parseUnary() (guardExpr, error) {
	if p.accept("!") {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return guardNot{x}, nil
	}
	return p.parsePrimary()
}

func (p *guardParser) parsePrimary() (guardExpr, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of guard")
	}
	if p.accept("(") {
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, p.errorf("missing )")
		}
		return x, nil
	}

	if strings.HasPrefix(p.src[p.pos:], sigil) {
		name, err := p.token()
		if err != nil {
			return nil, err
		}
		if p.keyword("instanceof") {
			typ, err := p.token()
			if err != nil {
				return nil, err
			}
			return p.call("instanceof", []string{name, typ})
		}
		return p.call("matchesAny", []string{name})
	}

	name, err := p.token()
	if err != nil {
		return nil, err
	}
	if !p.accept("(") {
		return p.call(name, nil)
	}
	var args []string
	if !p.accept(")") {
		for {
			arg, err := p.token()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.accept(")") {
				break
			}
			if !p.accept(",") {
				return nil, p.errorf("want , or ) in call of %s", name)
			}
		}
	}
	return p.call(name, args)
}

func (p *guardParser) call(name string, args []string) (guardExpr, error) {
	fn, ok := lookupGuardFunc(name)
	if !ok {
		return nil, p.errorf("%w %q", ErrUnknownGuardFunc, name)
	}
	return guardCall{name: name, fn: fn, args: args}, nil
}

// keyword consumes word if it follows as a whole word.
func (p *guardParser) keyword(word string) bool {
	p.skipSpace()
	rest := p.src[p.pos:]
	if !strings.HasPrefix(rest, word) {
		return false
	}
	if len(rest) > len(word) && isGuardNameChar(rune(rest[len(word)])) {
		return false
	}
	p.pos += len(word)
	return true
}

// token reads a placeholder, a quoted string, a number or a name. Names may
// be qualified type names such as "*net/http.Client" or "[]byte".
func (p *guardParser) token() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return "", p.errorf("unexpected end of guard")
	}
	start := p.pos
	switch c := p.src[p.pos]; {
	case c == '"' || c == '`':
		for p.pos++; p.pos < len(p.src) && p.src[p.pos] != c; p.pos++ {
			if c == '"' && p.src[p.pos] == '\\' {
				p.pos++
			}
		}
		if p.pos >= len(p.src) {
			p.pos = start
			return "", p.errorf("unterminated string")
		}
		p.pos++
		return p.src[start:p.pos], nil
	case c == '$':
		p.pos++
		for p.pos < len(p.src) && isIdentChar(rune(p.src[p.pos])) {
			p.pos++
		}
		if p.pos < len(p.src) && p.src[p.pos] == '$' {
			p.pos++
		}
		if p.pos == start+1 {
			return "", p.errorf("placeholder without a name")
		}
		return p.src[start:p.pos], nil
	case isGuardNameChar(rune(c)):
		for p.pos < len(p.src) && isGuardNameChar(rune(p.src[p.pos])) {
			p.pos++
		}
		return p.src[start:p.pos], nil
	}
	return "", p.errorf("unexpected %q", p.src[p.pos])
}

func isIdentChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isGuardNameChar(r rune) bool {
	return isIdentChar(r) || strings.ContainsRune("./-[]*", r)
}

// Unquote returns the value of a quoted guard argument, or arg itself when
// it is not quoted.
func Unquote(arg string) string {
	if s, err := strconv.Unquote(arg); err == nil {
		return s
	}
	return arg
}

func isBound(n ast.Node) bool {
	if l, ok := n.(List); ok {
		return len(l) > 0
	}
	return n != nil
}

// nodeText is the value of a literal, or the source text of any other node.
func nodeText(fset *token.FileSet, n ast.Node) string {
	switch n := n.(type) {
	case *ast.BasicLit:
		if n.Kind == token.STRING || n.Kind == token.CHAR {
			if s, err := strconv.Unquote(n.Value); err == nil {
				return s
			}
		}
		return n.Value
	case *ast.Ident:
		return n.Name
	case List:
		parts := make([]string, len(n))
		for i, e := range n {
			parts[i] = nodeText(fset, e)
		}
		return strings.Join(parts, ", ")
	}
	if fset == nil {
		fset = token.NewFileSet()
	}
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, n); err != nil {
		return ""
	}
	return buf.String()
}

// guardInstanceOf: instanceof($x, T) holds when $x's type is T. T may be
// written with its full package path or with the package name only, and a
// pointer matches its element type.
func guardInstanceOf(ctx *GuardContext, args []string) bool {
	if len(args) < 2 || ctx.Types == nil {
		return false
	}
	n := ctx.Binding(args[0])
	if n == nil {
		return false
	}
	typ, ok := ctx.Types.ResolveType(n)
	if !ok {
		return false
	}
	want := Unquote(args[1])
	for _, t := range []string{typ, strings.TrimPrefix(typ, "*")} {
		if t == want || shortTypeName(t) == want {
			return true
		}
	}
	return false
}

var importPathPrefix = regexp.MustCompile(`[\w.\-]+/`)

// shortTypeName drops import path prefixes: "[]example.com/m/pkg.T" becomes
// "[]pkg.T".
func shortTypeName(t string) string {
	return importPathPrefix.ReplaceAllString(t, "")
}

// guardMatchesAny: matchesAny($x) holds when $x is bound to something;
// matchesAny($x, v...) when $x's value or text equals one of v.
func guardMatchesAny(ctx *GuardContext, args []string) bool {
	if len(args) == 0 {
		return false
	}
	n := ctx.Binding(args[0])
	if len(args) == 1 {
		return isBound(n)
	}
	if n == nil {
		return false
	}
	text := nodeText(ctx.Fset, n)
	for _, v := range args[1:] {
		if text == Unquote(v) {
			return true
		}
	}
	return false
}

// guardMatchesNone is the negation of guardMatchesAny, except that it holds
// when called without arguments.
func guardMatchesNone(ctx *GuardContext, args []string) bool {
	if len(args) == 0 {
		return true
	}
	return !guardMatchesAny(ctx, args)
}

// guardHasNoSideEffect: hasNoSideEffect($x) holds unless $x contains a
// call, a channel operation, an assignment or an increment.
func guardHasNoSideEffect(ctx *GuardContext, args []string) bool {
	if len(args) == 0 {
		return true
	}
	n := ctx.Binding(args[0])
	if n == nil {
		return true
	}
	pure := true
	inspectBound(n, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.CallExpr, *ast.SendStmt, *ast.AssignStmt, *ast.IncDecStmt:
			pure = false
		case *ast.UnaryExpr:
			if n.Op == token.ARROW {
				pure = false
			}
		}
		return pure
	})
	return pure
}

// guardReferencedIn: referencedIn($v, $e) holds when the name bound to $v
// occurs as an identifier in $e.
func guardReferencedIn(ctx *GuardContext, args []string) bool {
	if len(args) < 2 {
		return false
	}
	v, e := ctx.Binding(args[0]), ctx.Binding(args[1])
	if v == nil || e == nil {
		return false
	}
	name := nodeText(ctx.Fset, v)
	found := false
	inspectBound(e, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && id.Name == name {
			found = true
		}
		return !found
	})
	return found
}

// guardContains: contains("text") holds when the body of the function
// enclosing the match contains text; contains($x, "text") looks around the
// node bound to $x instead. A matched function declaration is its own
// enclosing function.
func guardContains(ctx *GuardContext, args []string) bool {
	var (
		n    ast.Node
		text string
	)
	switch len(args) {
	case 0:
		return false
	case 1:
		n, text = ctx.Match.Node, Unquote(args[0])
	default:
		n, text = ctx.Binding(args[0]), Unquote(args[1])
	}
	if n == nil {
		return false
	}
	body := enclosingBody(ctx.Root, n)
	if body == nil {
		return false
	}
	return strings.Contains(nodeText(ctx.Fset, body), text)
}

// enclosingBody returns the body of the innermost function declaration or
// literal in root that contains n, n included.
func enclosingBody(root, n ast.Node) *ast.BlockStmt {
	switch fn := n.(type) {
	case *ast.FuncDecl:
		return fn.Body
	case *ast.FuncLit:
		return fn.Body
	}
	if root == nil || !n.Pos().IsValid() {
		return nil
	}
	var body *ast.BlockStmt
	ast.Inspect(root, func(c ast.Node) bool {
		if c == nil || c.Pos() > n.Pos() || c.End() < n.End() {
			return false
		}
		switch fn := c.(type) {
		case *ast.FuncDecl:
			if fn.Body != nil {
				body = fn.Body
			}
		case *ast.FuncLit:
			body = fn.Body
		}
		return true
	})
	return body
}

// inspectBound walks a bound node; a List is walked element by element.
func inspectBound(n ast.Node, f func(ast.Node) bool) {
	if l, ok := n.(List); ok {
		for _, e := range l {
			ast.Inspect(e, func(n ast.Node) bool { return n != nil && f(n) })
		}
		return
	}
	ast.Inspect(n, func(n ast.Node) bool { return n != nil && f(n) })
}
