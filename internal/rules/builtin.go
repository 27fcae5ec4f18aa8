package rules

import "github.com/gnolang/tpat/pattern"

// Builtin returns the rules shipped with tpat, in registration order.
func Builtin() []pattern.Rule {
	return []pattern.Rule{
		{
			ID:              "ioutil-readall",
			Pattern:         pattern.Pattern{Template: "ioutil.ReadAll($r)", Kind: pattern.MethodCall},
			Replacement:     "io.ReadAll($r)",
			ImportsToAdd:    []string{"io"},
			ImportsToRemove: []string{"io/ioutil"},
			Description:     "io/ioutil is deprecated, use io.ReadAll",
			Severity:        pattern.SeverityWarning,
			Enabled:         true,
		},
		{
			ID:              "ioutil-readfile",
			Pattern:         pattern.Pattern{Template: "ioutil.ReadFile($name)", Kind: pattern.MethodCall},
			Replacement:     "os.ReadFile($name)",
			ImportsToAdd:    []string{"os"},
			ImportsToRemove: []string{"io/ioutil"},
			Description:     "io/ioutil is deprecated, use os.ReadFile",
			Severity:        pattern.SeverityWarning,
			Enabled:         true,
		},
		{
			ID:              "ioutil-writefile",
			Pattern:         pattern.Pattern{Template: "ioutil.WriteFile($name, $data, $perm)", Kind: pattern.MethodCall},
			Replacement:     "os.WriteFile($name, $data, $perm)",
			ImportsToAdd:    []string{"os"},
			ImportsToRemove: []string{"io/ioutil"},
			Description:     "io/ioutil is deprecated, use os.WriteFile",
			Severity:        pattern.SeverityWarning,
			Enabled:         true,
		},
		{
			ID:          "strings-equal-fold",
			Pattern:     pattern.Pattern{Template: "strings.ToLower($a) == strings.ToLower($b)", Kind: pattern.Expression},
			Replacement: "strings.EqualFold($a, $b)",
			Description: "compare case-insensitively without allocating",
			Severity:    pattern.SeverityWarning,
			Enabled:     true,
		},
		{
			ID:              "errors-new-sprintf",
			Pattern:         pattern.Pattern{Template: "errors.New(fmt.Sprintf($args$))", Kind: pattern.MethodCall},
			Replacement:     "fmt.Errorf($args$)",
			ImportsToAdd:    []string{"fmt"},
			ImportsToRemove: []string{"errors"},
			Description:     "use fmt.Errorf instead of errors.New(fmt.Sprintf(...))",
			Severity:        pattern.SeverityWarning,
			Enabled:         true,
		},
		{
			ID:          "increment",
			Pattern:     pattern.Pattern{Template: "$x = $x + 1", Kind: pattern.Statement},
			Replacement: "$x++",
			Description: "use the increment statement",
			Severity:    pattern.SeverityInfo,
			Enabled:     true,
		},
		{
			ID: "builder-write-sprintf",
			Pattern: pattern.Pattern{
				Template: "$sb.WriteString(fmt.Sprintf($args$))",
				Kind:     pattern.MethodCall,
				Owner:    "strings.Builder",
			},
			Description: "write to the builder with fmt.Fprintf",
			Severity:    pattern.SeverityInfo,
			Enabled:     true,
		},
		{
			ID:          "context-todo",
			Pattern:     pattern.Pattern{Template: "context.TODO()", Kind: pattern.MethodCall},
			Description: "context.TODO left in code, pass the caller's context",
			Severity:    pattern.SeverityInfo,
			Enabled:     true,
		},
		{
			ID:          "http-client-zero",
			Pattern:     pattern.Pattern{Template: "http.Client{}", Kind: pattern.Constructor},
			Description: "the zero http.Client never times out",
			Severity:    pattern.SeverityWarning,
			Enabled:     true,
		},
		{
			ID: "stringer-recursion",
			Pattern: pattern.Pattern{
				Template: `func ($r $T) String() string { return fmt.Sprintf("%v", $r) }`,
				Kind:     pattern.MethodDeclaration,
			},
			Description: "String formats its own receiver with %v and recurses forever",
			Severity:    pattern.SeverityError,
			Enabled:     true,
		},
		{
			ID: "lock-without-unlock",
			Pattern: pattern.Pattern{
				Template: "$mu.Lock()",
				Kind:     pattern.MethodCall,
				Guard:    `notContains("Unlock()")`,
			},
			Description: "mutex locked in a function that never unlocks it",
			Severity:    pattern.SeverityWarning,
			Enabled:     true,
		},
		{
			ID: "handler-background-context",
			Pattern: pattern.Pattern{
				Template: "func ($r $T) ServeHTTP($w http.ResponseWriter, $req *http.Request) { $body$ }",
				Kind:     pattern.MethodDeclaration,
				Body:     "context.Background()",
			},
			Description: "ServeHTTP starts from context.Background, use the request context",
			Severity:    pattern.SeverityWarning,
			Enabled:     true,
		},
		{
			ID:      "sprintf-string",
			Pattern: pattern.Pattern{Template: `fmt.Sprintf("%s", $x)`, Kind: pattern.MethodCall},
			Alternatives: []pattern.Alternative{
				{Replacement: "$x", Guard: "$x instanceof string"},
				{Replacement: "$x.String()", Guard: `$x instanceof strings.Builder || $x instanceof bytes.Buffer`},
			},
			Description: "formatting a single value with %s",
			Severity:    pattern.SeverityInfo,
			Enabled:     true,
		},
	}
}
