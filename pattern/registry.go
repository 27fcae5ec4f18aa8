package pattern

import (
	"errors"
	"fmt"
	"go/ast"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Finding is a match reported on behalf of a rule.
type Finding struct {
	Rule  Rule
	Match Match
}

// Result pairs a match with the edit its rule produced for it.
type Result struct {
	Rule  Rule
	Match Match
	Edit  *Edit
}

// Registry holds the rules of one analysis session in registration order.
// A fresh Registry per run is the intended usage.
type Registry struct {
	mu     sync.RWMutex
	rules  []*Rule
	byID   map[string]*Rule
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byID:   make(map[string]*Rule),
		logger: logger,
	}
}

// Register adds a rule. Rules whose templates do not compile, or whose
// replacement uses placeholders the pattern never binds, are still added
// but logged, so their authors hear about it at start-up.
func (r *Registry) Register(rule Rule) error {
	if rule.ID == "" {
		return errors.New("rule has no id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[rule.ID]; dup {
		return fmt.Errorf("rule %q already registered", rule.ID)
	}
	if err := rule.Validate(); err != nil {
		r.logger.Warn("rule will not produce results",
			zap.String("rule", rule.ID),
			zap.Error(err),
		)
	}
	rule.ImportsToAdd = append([]string(nil), rule.ImportsToAdd...)
	rule.ImportsToRemove = append([]string(nil), rule.ImportsToRemove...)
	rule.Alternatives = append([]Alternative(nil), rule.Alternatives...)
	p := &rule
	r.rules = append(r.rules, p)
	r.byID[rule.ID] = p
	return nil
}

// AllRules returns a snapshot of the registered rules in order.
func (r *Registry) AllRules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, *rule)
	}
	return out
}

func (r *Registry) Lookup(id string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.byID[id]
	if !ok {
		return Rule{}, false
	}
	return *rule, true
}

// SetEnabled toggles a rule between runs.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("unknown rule %q", id)
	}
	rule.Enabled = enabled
	return nil
}

func (r *Registry) enabled() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Rule
	for _, rule := range r.rules {
		if rule.Enabled {
			out = append(out, *rule)
		}
	}
	return out
}

// Find searches root with every enabled rule, including rules that only
// report, and returns the findings grouped by rule in registration order.
func (r *Registry) Find(s *Searcher, root ast.Node) []Finding {
	var findings []Finding
	for _, rule := range r.enabled() {
		cp, err := compilePattern(rule.Pattern)
		if err != nil {
			r.logger.Debug("skipping rule", zap.String("rule", rule.ID), zap.Error(err))
			continue
		}
		for _, m := range s.search(root, cp) {
			findings = append(findings, Finding{Rule: rule, Match: m})
		}
	}
	return findings
}

// Apply searches root with every enabled rule that has a replacement and
// rewrites each match. Rules are independent: a rule that fails only loses
// its own results, and all failures are returned together beside the
// results that succeeded. Matches no guarded alternative applies to are
// left out. Overlapping edits are left for the caller to resolve.
func (r *Registry) Apply(s *Searcher, root ast.Node) ([]Result, error) {
	var (
		results []Result
		errs    error
	)
	for _, rule := range r.enabled() {
		if !rule.HasReplacement() {
			continue
		}
		cp, err := compilePattern(rule.Pattern)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		for _, m := range s.search(root, cp) {
			edit, err := Rewrite(m, &rule)
			if errors.Is(err, ErrNoAlternative) {
				continue
			}
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			results = append(results, Result{Rule: rule, Match: m, Edit: edit})
		}
		r.logger.Debug("rule applied", zap.String("rule", rule.ID), zap.Int("results", len(results)))
	}
	return results, errs
}
