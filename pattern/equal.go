package pattern

import (
	"go/ast"
	"reflect"
)

// Equal reports whether x and y are structurally equal syntax. Positions,
// comments and resolver objects are ignored and literals compare by value.
// Two Lists are equal when their elements are pairwise equal.
func Equal(x, y ast.Node) bool {
	xl, xIsList := x.(List)
	yl, yIsList := y.(List)
	if xIsList || yIsList {
		if !xIsList || !yIsList || len(xl) != len(yl) {
			return false
		}
		for i := range xl {
			if !Equal(xl[i], yl[i]) {
				return false
			}
		}
		return true
	}

	var m matcher
	return m.match(reflect.ValueOf(x), reflect.ValueOf(y))
}
