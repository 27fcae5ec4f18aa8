package nolint

import (
	"errors"
	"go/ast"
	"go/token"
	"strings"
)

// Directive is the comment prefix that suppresses findings:
//
//	//tpat:ignore                  all rules
//	//tpat:ignore rule-a,rule-b    only the listed rules
const Directive = "//tpat:ignore"

var errNotDirective = errors.New("not a suppression comment")

// Manager answers whether a finding at some position is suppressed.
type Manager struct {
	// scopes maps filename to the ranges suppressed in it.
	scopes map[string][]scope
}

// scope is a line range with the rules suppressed in it. An empty rule set
// suppresses every rule.
type scope struct {
	rules     map[string]struct{}
	startLine int
	endLine   int
}

// ParseComments collects the suppression directives of f.
//
// A directive above the package clause covers the whole file. A directive
// trailing a statement covers that statement. A directive on its own line
// covers the statement or declaration starting on the next line, and
// otherwise just its own line.
func ParseComments(f *ast.File, fset *token.FileSet) *Manager {
	m := &Manager{scopes: make(map[string][]scope)}
	stmts := statementsByLine(f, fset)
	packageLine := fset.Position(f.Package).Line

	for _, cg := range f.Comments {
		for _, c := range cg.List {
			rules, err := parseDirective(c.Text)
			if err != nil {
				continue
			}
			pos := fset.Position(c.Slash)
			s := scope{rules: rules}
			s.startLine, s.endLine = coverage(f, fset, stmts, pos, packageLine)
			m.scopes[pos.Filename] = append(m.scopes[pos.Filename], s)
		}
	}
	return m
}

// parseDirective returns the rule names a directive names.
func parseDirective(text string) (map[string]struct{}, error) {
	rest, ok := strings.CutPrefix(text, Directive)
	if !ok {
		return nil, errNotDirective
	}
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		// e.g. //tpat:ignored
		return nil, errNotDirective
	}

	rules := make(map[string]struct{})
	for _, name := range strings.Split(strings.TrimSpace(rest), ",") {
		if name = strings.TrimSpace(name); name != "" {
			rules[name] = struct{}{}
		}
	}
	return rules, nil
}

func coverage(f *ast.File, fset *token.FileSet, stmts map[int]ast.Stmt, pos token.Position, packageLine int) (int, int) {
	if pos.Line < packageLine {
		return 1, fset.Position(f.End()).Line
	}

	if stmt, ok := stmts[pos.Line]; ok && fset.Position(stmt.Pos()).Offset < pos.Offset {
		return fset.Position(stmt.Pos()).Line, fset.Position(stmt.End()).Line
	}

	next := pos.Line + 1
	if stmt, ok := stmts[next]; ok {
		return pos.Line, fset.Position(stmt.End()).Line
	}
	for _, decl := range f.Decls {
		if fset.Position(decl.Pos()).Line == next {
			return pos.Line, fset.Position(decl.End()).Line
		}
	}
	return pos.Line, pos.Line
}

// statementsByLine maps each line to the first statement starting on it.
func statementsByLine(f *ast.File, fset *token.FileSet) map[int]ast.Stmt {
	stmts := make(map[int]ast.Stmt)
	ast.Inspect(f, func(n ast.Node) bool {
		stmt, ok := n.(ast.Stmt)
		if !ok {
			return n != nil
		}
		line := fset.Position(stmt.Pos()).Line
		if _, seen := stmts[line]; !seen {
			stmts[line] = stmt
		}
		return true
	})
	return stmts
}

// IsNolint reports whether findings of rule at pos are suppressed.
func (m *Manager) IsNolint(pos token.Position, rule string) bool {
	if m == nil {
		return false
	}
	for _, s := range m.scopes[pos.Filename] {
		if pos.Line < s.startLine || pos.Line > s.endLine {
			continue
		}
		if len(s.rules) == 0 {
			return true
		}
		if _, ok := s.rules[rule]; ok {
			return true
		}
	}
	return false
}
