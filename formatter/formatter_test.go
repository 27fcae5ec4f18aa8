package formatter

import (
	"go/token"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/gnolang/tpat/internal"
	tt "github.com/gnolang/tpat/internal/types"
	"github.com/gnolang/tpat/pattern"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestFormatIssuesWithArrows(t *testing.T) {
	t.Parallel()
	code := &internal.SourceCode{
		Lines: []string{
			"package main",
			"",
			"func main() {",
			"    x := 1",
			"    if true {}",
			"}",
		},
	}

	issues := []tt.Issue{
		{
			Rule:     "unused-variable",
			Severity: pattern.SeverityError,
			Filename: "test.go",
			Start:    token.Position{Line: 4, Column: 5},
			End:      token.Position{Line: 4, Column: 6},
			Message:  "x declared but not used",
		},
		{
			Rule:     "empty-if",
			Severity: pattern.SeverityWarning,
			Filename: "test.go",
			Start:    token.Position{Line: 5, Column: 5},
			End:      token.Position{Line: 5, Column: 15},
			Message:  "empty branch",
		},
	}

	expected := `error: unused-variable
 --> test.go:4:5
  |
4 | x := 1
  | ~
  = x declared but not used

warning: empty-if
 --> test.go:5:5
  |
5 | if true {}
  | ~~~~~~~~~~
  = empty branch

`

	assert.Equal(t, expected, GenerateFormattedIssue(issues, code))
}

func TestFormatIssueWithSuggestionAndImports(t *testing.T) {
	t.Parallel()
	code := &internal.SourceCode{
		Lines: []string{
			"package main",
			"",
			"func main() {",
			"\tdata, _ := ioutil.ReadAll(os.Stdin)",
			"}",
		},
	}

	issues := []tt.Issue{{
		Rule:            "ioutil-readall",
		Severity:        pattern.SeverityWarning,
		Filename:        "main.go",
		Start:           token.Position{Line: 4, Column: 13},
		End:             token.Position{Line: 4, Column: 37},
		Message:         "io/ioutil is deprecated, use io.ReadAll",
		Suggestion:      "io.ReadAll(os.Stdin)",
		RequiredImports: []string{"io"},
		RemovedImports:  []string{"io/ioutil"},
	}}

	expected := `warning: ioutil-readall
 --> main.go:4:13
  |
4 | data, _ := ioutil.ReadAll(os.Stdin)
  |            ~~~~~~~~~~~~~~~~~~~~~~~~
  = io/ioutil is deprecated, use io.ReadAll

Suggestion:
  |
4 | io.ReadAll(os.Stdin)
  |

Note: adds import "io"; removes import "io/ioutil" if unused

`

	assert.Equal(t, expected, GenerateFormattedIssue(issues, code))
}

func TestFormatIssuesWithArrows_MultipleDigitsLineNumbers(t *testing.T) {
	t.Parallel()
	code := &internal.SourceCode{
		Lines: []string{
			"package main",
			"",
			"func main() {",
			"    x := 1",
			"    y := 2",
			"    if x == y {",
			"        println(x)",
			"    }",
			"    z := 3",
			"    w := 4",
			"    _ = z + w",
			"}",
		},
	}

	issues := []tt.Issue{
		{
			Rule:     "sum",
			Filename: "test.go",
			Start:    token.Position{Line: 11, Column: 9},
			End:      token.Position{Line: 11, Column: 14},
			Message:  "matches \"$a + $b\"",
		},
		{
			Rule:     "if-block",
			Filename: "test.go",
			Start:    token.Position{Line: 6, Column: 5},
			End:      token.Position{Line: 8, Column: 6},
			Message:  "matches \"if $c { $body$ }\"",
		},
	}

	expected := `info: sum
  --> test.go:11:9
   |
11 | _ = z + w
   |     ~~~~~
   = matches "$a + $b"

info: if-block
 --> test.go:6:5
  |
6 | if x == y {
7 |     println(x)
8 | }
  | ~
  = matches "if $c { $body$ }"

`

	assert.Equal(t, expected, GenerateFormattedIssue(issues, code))
}

func TestFormatIssueOutsideSource(t *testing.T) {
	t.Parallel()
	issues := []tt.Issue{{
		Rule:     "gone",
		Severity: pattern.SeverityError,
		Filename: "test.go",
		Start:    token.Position{Line: 40, Column: 1},
		End:      token.Position{Line: 40, Column: 3},
		Message:  "file changed since analysis",
	}}

	expected := `error: gone
  --> test.go:40:1
   |
   = file changed since analysis

`

	assert.Equal(t, expected, GenerateFormattedIssue(issues, nil))
}

func TestImportNote(t *testing.T) {
	t.Parallel()
	assert.Empty(t, importNote(nil, nil))
	assert.Equal(t, `adds import "io", "os"`, importNote([]string{"io", "os"}, nil))
	assert.Equal(t, `removes import "errors" if unused`, importNote(nil, []string{"errors"}))
}

func TestCalculateVisualColumn(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, calculateVisualColumn("\tx", 1))
	assert.Equal(t, 8, calculateVisualColumn("\tx", 2))
	assert.Equal(t, 8, calculateVisualColumn("ab\tx", 4))
	assert.Equal(t, 0, calculateVisualColumn("abc", -1))
}

func TestFindCommonIndent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		expected string
		lines    []string
	}{
		{
			name: "whitespace indent",
			lines: []string{
				"    if foo {",
				"        println()",
				"    }",
			},
			expected: "    ",
		},
		{
			name: "tab indent",
			lines: []string{
				"	if foo {",
				"		println()",
				"	}",
			},
			expected: "\t",
		},
		{
			name: "mixed indent (space and tab)",
			lines: []string{
				"\t    if foo {",
				"\t    \tprintln()",
				"\t    }",
			},
			expected: "\t    ",
		},
		{
			name: "no indent",
			lines: []string{
				"if foo {",
				"println()",
				"}",
			},
			expected: "",
		},
		{
			name: "empty line",
			lines: []string{
				"    if foo {",
				"",
				"        println()",
				"    }",
			},
			expected: "    ",
		},
		{
			name: "various indent levels",
			lines: []string{
				"    if foo {",
				"      bar()",
				"        baz()",
				"    }",
			},
			expected: "    ",
		},
		{
			name:     "empty input",
			lines:    []string{},
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, findCommonIndent(tc.lines))
		})
	}
}

func TestFirstLine(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "x++", FirstLine("x++"))
	assert.Equal(t, "func f() { ...", FirstLine("func f() {\n}"))
	assert.Equal(t, " ...", FirstLine("\nrest"))
}
