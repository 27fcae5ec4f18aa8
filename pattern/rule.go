package pattern

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Severity grades how strongly a finding should be brought to attention.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "info", "hint", "":
		*s = SeverityInfo
	case "warning", "warn":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Rule pairs a pattern with an optional replacement. A rule without a
// replacement only reports its matches.
type Rule struct {
	ID          string
	Pattern     Pattern
	Replacement string
	// Alternatives are tried in order before Replacement; the first whose
	// guard holds rewrites the match. Replacement, when set, is the
	// fallback used when no alternative applies.
	Alternatives    []Alternative
	ImportsToAdd    []string
	ImportsToRemove []string
	Description     string
	Severity        Severity
	Enabled         bool
}

// Alternative is a replacement used only when its guard holds for the
// match. An empty guard always holds. Its imports are changed on top of
// the rule's.
type Alternative struct {
	Replacement     string
	Guard           string
	ImportsToAdd    []string
	ImportsToRemove []string
}

// HasReplacement reports whether r rewrites the code it matches.
func (r *Rule) HasReplacement() bool {
	return len(r.alternatives()) > 0
}

// alternatives lists the replacements of r in the order they are tried.
func (r *Rule) alternatives() []Alternative {
	var alts []Alternative
	for _, a := range r.Alternatives {
		if strings.TrimSpace(a.Replacement) != "" {
			alts = append(alts, a)
		}
	}
	if strings.TrimSpace(r.Replacement) != "" {
		alts = append(alts, Alternative{Replacement: r.Replacement})
	}
	return alts
}

// alternativeFor returns the first alternative of r whose guard holds
// for m, or ErrNoAlternative.
func (r *Rule) alternativeFor(m Match) (Alternative, error) {
	ctx := m.GuardContext()
	for _, a := range r.alternatives() {
		if strings.TrimSpace(a.Guard) == "" {
			return a, nil
		}
		g, err := ParseGuard(a.Guard)
		if err != nil {
			return Alternative{}, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		if g.Eval(ctx) {
			return a, nil
		}
	}
	return Alternative{}, ErrNoAlternative
}

// Validate compiles the rule's templates and guards and checks that every
// replacement only uses placeholders the pattern binds.
func (r *Rule) Validate() error {
	cp, err := compilePattern(r.Pattern)
	if err != nil {
		return err
	}

	bound := make(map[string]bool)
	for _, name := range cp.tmpl.Placeholders() {
		bound[name] = true
	}
	var errs error
	for _, a := range r.alternatives() {
		repl, err := Compile(a.Replacement, r.Pattern.Kind.replacementKind())
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, name := range repl.Placeholders() {
			if !bound[name] {
				errs = multierr.Append(errs, &UnboundPlaceholderError{Rule: r.ID, Name: name})
			}
		}
		if strings.TrimSpace(a.Guard) != "" {
			if _, err := ParseGuard(a.Guard); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}
