package fixer

import (
	"go/ast"
	"go/token"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/tpat/pattern"
)

// FixImports brings the imports of file in line with the applied edits.
// Imports an edit asks to remove are deleted only once nothing in the file
// uses them; imports an edit needs are added when missing.
func FixImports(fset *token.FileSet, file *ast.File, edits []*pattern.Edit) {
	for _, path := range CollectRemovedImports(edits) {
		if hasImport(file, path) && !astutil.UsesImport(file, path) {
			astutil.DeleteImport(fset, file, path)
		}
	}
	for _, path := range CollectRequiredImports(edits) {
		if !hasImport(file, path) {
			astutil.AddImport(fset, file, path)
		}
	}
}

// hasImport checks if the file already imports path.
func hasImport(file *ast.File, path string) bool {
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err == nil && p == path {
			return true
		}
	}
	return false
}

// CollectRequiredImports gathers the unique imports the edits add.
func CollectRequiredImports(edits []*pattern.Edit) []string {
	return collect(edits, func(e *pattern.Edit) []string { return e.AddImports })
}

// CollectRemovedImports gathers the unique imports the edits may remove.
func CollectRemovedImports(edits []*pattern.Edit) []string {
	return collect(edits, func(e *pattern.Edit) []string { return e.RemoveImports })
}

func collect(edits []*pattern.Edit, paths func(*pattern.Edit) []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range edits {
		for _, p := range paths(e) {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
