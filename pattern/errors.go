package pattern

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnknownKind is returned for a Kind value or name that is not defined.
	ErrUnknownKind = errors.New("unknown pattern kind")

	// ErrNoReplacement is returned when rewriting with a rule that only reports.
	ErrNoReplacement = errors.New("rule has no replacement")

	// ErrNoAlternative is returned when none of a rule's guarded rewrite
	// alternatives holds for a match. The match stays a plain finding.
	ErrNoAlternative = errors.New("no rewrite alternative applies")

	// ErrBodyConstraint is returned for a body constraint on a pattern that
	// is not a method declaration.
	ErrBodyConstraint = errors.New("body constraints need a method declaration pattern")
)

// CompileError reports a fragment that could not be turned into a template.
// Callers treat it as "rule not applicable", never as a fatal condition.
type CompileError struct {
	Fragment string
	Kind     Kind
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s template %q: %v", e.Kind, e.Fragment, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// UnboundPlaceholderError indicates that a replacement refers to a
// placeholder the pattern never binds. It is a rule-authoring defect.
type UnboundPlaceholderError struct {
	Rule string
	Name string
}

func (e *UnboundPlaceholderError) Error() string {
	return fmt.Sprintf("rule %q: replacement uses unbound placeholder $%s", e.Rule, e.Name)
}

// SpliceError indicates that a bound sub-tree cannot be placed where the
// replacement puts its placeholder, e.g. a call bound in a field-name slot.
type SpliceError struct {
	Name string
	Have reflect.Type
	Want reflect.Type
}

func (e *SpliceError) Error() string {
	return fmt.Sprintf("placeholder $%s bound to %v cannot be used where %v is required", e.Name, e.Have, e.Want)
}
