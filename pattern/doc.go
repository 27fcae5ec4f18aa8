/*
Package pattern compiles Go code fragments containing placeholders into
templates, searches syntax trees for nodes matching those templates, and
rewrites matched nodes from a replacement template.

# Placeholder Syntax

A placeholder is an identifier prefixed with the '$' sigil. Three forms are
recognized:

 1. Single: $name
    Binds exactly one sub-tree, e.g. "$x.Close()".

 2. Multi: $name$
    Binds a run of zero or more consecutive list elements, e.g.
    "fmt.Sprintf($args$)". Only one multi placeholder may appear in a
    single list.

 3. Typed: $name:Constraint
    Binds only nodes satisfying the constraint, e.g. "errors.New($msg:StringLit)".
    Constraints are go/ast node type names (BasicLit, Ident, CallExpr, ...)
    and the categories Expr, Stmt, StringLit and NumberLit.

A placeholder that appears more than once in a pattern must match
structurally equal sub-trees at every occurrence: "$x + $x" matches "a + a"
but not "a + b".

# Guards

A Pattern may carry a guard that every match must satisfy, and a Rule may
list guarded Alternatives tried in order before its Replacement:

	$x instanceof string && !matchesAny($y, "nil")
	contains("Unlock()") || referencedIn($v, $body$)

Guards combine function calls with &&, || and !. A bare placeholder tests
that it is bound. The built-in functions are instanceof, matchesAny,
matchesNone, hasNoSideEffect, referencedIn, contains, notContains and
otherwise; RegisterGuardFunc adds more. instanceof needs a Searcher whose
Resolver also implements TypeResolver.

Method declaration patterns may also constrain the declaration's body with
Body, BodyKind and NegateBody.

# Pipeline

	Compile      fragment + Kind      -> *Template
	Match        *Template + ast.Node -> Bindings
	FindMatches  ast.Node + Pattern   -> []Match        (pre-order)
	Rewrite      Match + *Rule        -> *Edit          (no tree mutation)
	Registry     []Rule               -> []Result

The engine never mutates the searched tree. An Edit describes the
replacement and the import changes it needs; applying it is the caller's job.
*/
package pattern
