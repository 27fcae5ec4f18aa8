package pattern

import (
	"fmt"
	"go/ast"
	"strings"
)

// Kind is the syntactic category a pattern describes. It decides how a
// fragment is wrapped before parsing and which nodes are eligible matches.
type Kind int

const (
	Expression Kind = iota + 1
	Statement
	MethodCall
	Constructor
	MethodDeclaration
)

var kindNames = map[Kind]string{
	Expression:        "expression",
	Statement:         "statement",
	MethodCall:        "methodcall",
	Constructor:       "constructor",
	MethodDeclaration: "methoddecl",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the Kind named by s. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Accepts reports whether n belongs to the category k.
func (k Kind) Accepts(n ast.Node) bool {
	switch k {
	case Expression:
		_, ok := n.(ast.Expr)
		return ok
	case Statement:
		_, ok := n.(ast.Stmt)
		return ok
	case MethodCall:
		_, ok := n.(*ast.CallExpr)
		return ok
	case Constructor:
		_, ok := n.(*ast.CompositeLit)
		return ok
	case MethodDeclaration:
		_, ok := n.(*ast.FuncDecl)
		return ok
	}
	return false
}

// replacementKind is the kind a rule's replacement compiles as. A call or a
// composite literal may be replaced by any expression.
func (k Kind) replacementKind() Kind {
	switch k {
	case MethodCall, Constructor:
		return Expression
	}
	return k
}
