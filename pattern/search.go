package pattern

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"
)

// Pattern is the matching half of a rule.
type Pattern struct {
	Template string
	Kind     Kind
	// Owner restricts matches to nodes whose owning type, as reported by an
	// OwnerResolver, equals this qualified name (e.g. "strings.Builder").
	Owner string
	// Guard, when set, must hold for a match to be reported. See ParseGuard.
	Guard string

	// Body constrains MethodDeclaration patterns: a matched declaration is
	// kept only if its body contains a node matching Body, compiled with
	// BodyKind (Expression when zero). NegateBody keeps the declarations
	// whose body contains no such node.
	Body       string
	BodyKind   Kind
	NegateBody bool
}

// compiledPattern is a Pattern with every fragment compiled.
type compiledPattern struct {
	tmpl       *Template
	owner      string
	guard      *Guard
	body       *Template
	negateBody bool
}

func compilePattern(p Pattern) (*compiledPattern, error) {
	t, err := Compile(p.Template, p.Kind)
	if err != nil {
		return nil, err
	}
	cp := &compiledPattern{tmpl: t, owner: p.Owner, negateBody: p.NegateBody}
	if strings.TrimSpace(p.Guard) != "" {
		if cp.guard, err = ParseGuard(p.Guard); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(p.Body) != "" {
		if p.Kind != MethodDeclaration {
			return nil, fmt.Errorf("%w: body constraint on a %s pattern", ErrBodyConstraint, p.Kind)
		}
		kind := p.BodyKind
		if kind == 0 {
			kind = Expression
		}
		if cp.body, err = Compile(p.Body, kind); err != nil {
			return nil, err
		}
	}
	return cp, nil
}

// OwnerResolver names the type that owns a node: the receiver type of a
// method call or declaration, or the type of a composite literal.
type OwnerResolver interface {
	ResolveOwner(n ast.Node) (string, bool)
}

// OwnerResolverFunc adapts a function to OwnerResolver.
type OwnerResolverFunc func(n ast.Node) (string, bool)

func (f OwnerResolverFunc) ResolveOwner(n ast.Node) (string, bool) {
	return f(n)
}

// Match is one occurrence of a pattern in a tree.
type Match struct {
	Node     ast.Node
	Bindings Bindings
	Offset   int // byte offset of Node in its file
	Length   int

	// where the match was found, for guards evaluated after the search
	root  ast.Node
	fset  *token.FileSet
	types TypeResolver
}

// GuardContext returns the context guards on m are evaluated in.
func (m Match) GuardContext() *GuardContext {
	return &GuardContext{Match: m, Fset: m.fset, Root: m.root, Types: m.types}
}

// Searcher walks syntax trees looking for pattern occurrences. The zero
// value is usable; it reports raw token.Pos offsets and never matches
// owner-restricted patterns.
type Searcher struct {
	Fset     *token.FileSet
	Resolver OwnerResolver

	// MaxVisits bounds the number of nodes one traversal may visit. When the
	// budget runs out the matches found so far are returned. Zero means no
	// limit.
	MaxVisits int
}

// FindMatches returns every node under root, root included, that matches p,
// in pre-order. A pattern that does not compile yields no matches.
func (s *Searcher) FindMatches(root ast.Node, p Pattern) []Match {
	cp, err := compilePattern(p)
	if err != nil {
		return nil
	}
	return s.search(root, cp)
}

func (s *Searcher) search(root ast.Node, cp *compiledPattern) []Match {
	if s == nil {
		s = &Searcher{}
	}
	if root == nil || cp == nil || cp.tmpl == nil {
		return nil
	}
	if cp.owner != "" && s.Resolver == nil {
		return nil
	}
	typer, _ := s.Resolver.(TypeResolver)

	var (
		matches []Match
		visits  int
		done    bool
	)
	t := cp.tmpl
	ast.Inspect(root, func(n ast.Node) bool {
		if n == nil || done {
			return false
		}
		visits++
		if s.MaxVisits > 0 && visits > s.MaxVisits {
			done = true
			return false
		}
		if !t.Kind.Accepts(n) {
			return true
		}

		b := make(Bindings)
		if !t.Match(n, b) {
			return true
		}
		if cp.owner != "" {
			if got, ok := s.Resolver.ResolveOwner(n); !ok || got != cp.owner {
				return true
			}
		}
		if cp.body != nil && !s.bodyHolds(n, cp) {
			return true
		}

		off, length := s.span(n)
		m := Match{Node: n, Bindings: b, Offset: off, Length: length, root: root, fset: s.Fset, types: typer}
		if cp.guard != nil && !cp.guard.Eval(m.GuardContext()) {
			return true
		}
		matches = append(matches, m)
		return true
	})
	return matches
}

// bodyHolds reports whether the body of the declaration n satisfies cp's
// body constraint. Declarations without a body never do.
func (s *Searcher) bodyHolds(n ast.Node, cp *compiledPattern) bool {
	fn, ok := n.(*ast.FuncDecl)
	if !ok || fn.Body == nil {
		return false
	}
	inner := &Searcher{Fset: s.Fset}
	found := len(inner.search(fn.Body, &compiledPattern{tmpl: cp.body})) > 0
	return found != cp.negateBody
}

func (s *Searcher) span(n ast.Node) (int, int) {
	pos, end := n.Pos(), n.End()
	if s.Fset != nil && pos.IsValid() {
		if f := s.Fset.File(pos); f != nil {
			start := f.Offset(pos)
			return start, f.Offset(end) - start
		}
	}
	return int(pos), int(end - pos)
}
