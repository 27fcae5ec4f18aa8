package pattern

import (
	"fmt"
	"go/ast"
	"go/scanner"
	"go/token"
	"reflect"
	"strings"
)

const sigil = "$"

// Placeholder is a named wildcard of a template.
type Placeholder struct {
	Name       string
	Constraint string // empty when unconstrained
	Multi      bool   // $name$ form, binds a List
}

func (p Placeholder) String() string {
	var sb strings.Builder
	sb.WriteString(sigil)
	sb.WriteString(p.Name)
	if p.Multi {
		sb.WriteString(sigil)
	}
	if p.Constraint != "" {
		sb.WriteString(":")
		sb.WriteString(p.Constraint)
	}
	return sb.String()
}

// constraints lists the names accepted after "$name:". Anything else after a
// colon is left alone so that slice and key-value syntax keep working.
var constraints = map[string]bool{
	"Expr":           true,
	"Stmt":           true,
	"StringLit":      true,
	"NumberLit":      true,
	"BasicLit":       true,
	"Ident":          true,
	"CallExpr":       true,
	"SelectorExpr":   true,
	"CompositeLit":   true,
	"FuncLit":        true,
	"BinaryExpr":     true,
	"UnaryExpr":      true,
	"StarExpr":       true,
	"ParenExpr":      true,
	"IndexExpr":      true,
	"SliceExpr":      true,
	"TypeAssertExpr": true,
	"KeyValueExpr":   true,
	"ArrayType":      true,
	"MapType":        true,
	"ChanType":       true,
	"FuncType":       true,
	"StructType":     true,
	"InterfaceType":  true,
	"AssignStmt":     true,
	"BlockStmt":      true,
	"DeclStmt":       true,
	"DeferStmt":      true,
	"ExprStmt":       true,
	"ForStmt":        true,
	"GoStmt":         true,
	"IfStmt":         true,
	"IncDecStmt":     true,
	"RangeStmt":      true,
	"ReturnStmt":     true,
	"SwitchStmt":     true,
}

// accepts reports whether n satisfies the placeholder's constraint.
func (p Placeholder) accepts(n ast.Node) bool {
	switch p.Constraint {
	case "":
		return true
	case "Expr":
		_, ok := n.(ast.Expr)
		return ok
	case "Stmt":
		_, ok := n.(ast.Stmt)
		return ok
	case "StringLit":
		lit, ok := n.(*ast.BasicLit)
		return ok && lit.Kind == token.STRING
	case "NumberLit":
		lit, ok := n.(*ast.BasicLit)
		return ok && (lit.Kind == token.INT || lit.Kind == token.FLOAT || lit.Kind == token.IMAG)
	}
	t := reflect.TypeOf(n)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name() == p.Constraint
}

// Bindings maps placeholder names to the syntax they matched. Single
// placeholders bind an ast.Node, multi placeholders bind a List.
type Bindings map[string]ast.Node

// List is the binding of a multi placeholder: consecutive elements of one
// syntax list, possibly empty.
type List []ast.Node

func (l List) Pos() token.Pos {
	if len(l) == 0 {
		return token.NoPos
	}
	return l[0].Pos()
}

func (l List) End() token.Pos {
	if len(l) == 0 {
		return token.NoPos
	}
	return l[len(l)-1].End()
}

// rewritePlaceholders replaces every placeholder of src with a legal Go
// identifier. It returns the rewritten source and the placeholders keyed by
// the identifiers that stand for them. The source is tokenized so that
// string literals and comments are left untouched.
func rewritePlaceholders(src string) (string, map[string]Placeholder, []string) {
	type lexeme struct {
		off int
		tok token.Token
		lit string
	}

	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))
	var s scanner.Scanner
	s.Init(file, []byte(src), func(token.Position, string) {}, 0)

	var toks []lexeme
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			continue // automatically inserted
		}
		toks = append(toks, lexeme{off: file.Offset(pos), tok: tok, lit: lit})
	}

	var (
		out      strings.Builder
		holes    = make(map[string]Placeholder)
		sentinel = make(map[Placeholder]string)
		names    []string
		seen     = make(map[string]bool)
		last     int
	)
	adjacent := func(i, end int) bool {
		return i < len(toks) && toks[i].off == end
	}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.tok != token.ILLEGAL || t.lit != sigil || !adjacent(i+1, t.off+1) || toks[i+1].tok != token.IDENT {
			continue
		}
		name := toks[i+1]
		p := Placeholder{Name: name.lit}
		end := name.off + len(name.lit)
		j := i + 2
		if adjacent(j, end) && toks[j].tok == token.ILLEGAL && toks[j].lit == sigil {
			p.Multi = true
			end++
			j++
		}
		if adjacent(j, end) && toks[j].tok == token.COLON &&
			adjacent(j+1, end+1) && toks[j+1].tok == token.IDENT && constraints[toks[j+1].lit] {
			p.Constraint = toks[j+1].lit
			end += 1 + len(toks[j+1].lit)
			j += 2
		}

		id, ok := sentinel[p]
		if !ok {
			id = fmt.Sprintf("__tpat%d_%s", len(sentinel), p.Name)
			sentinel[p] = id
			holes[id] = p
		}
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}

		out.WriteString(src[last:t.off])
		out.WriteString(id)
		last = end
		i = j - 1
	}
	out.WriteString(src[last:])
	return out.String(), holes, names
}
