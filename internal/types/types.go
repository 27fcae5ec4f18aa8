package types

import (
	"go/token"

	"github.com/gnolang/tpat/pattern"
)

// Issue is one finding of a rule in a source file.
type Issue struct {
	Rule       string
	Severity   pattern.Severity
	Filename   string
	Message    string
	Suggestion string // rendered replacement; empty for hint-only rules
	Start      token.Position
	End        token.Position

	RequiredImports []string
	RemovedImports  []string

	// Edit is the structural rewrite behind Suggestion. It is only
	// meaningful against the tree the issue was found in.
	Edit *pattern.Edit `json:"-"`
}
