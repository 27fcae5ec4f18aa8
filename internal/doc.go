// Package internal runs tpat rules over Go and Gno source files.
//
// Engine coordinates one run: it parses each file, type-checks it when an
// enabled rule is restricted to an owner type, asks the rule registry for
// findings, renders the rewrites of rules that have a replacement and drops
// findings silenced by //tpat:ignore comments. The resulting issues can be
// printed, or handed back to Fix to rewrite the file.
//
// Cache keeps the issues of unchanged files between runs, and Watcher
// re-runs the engine whenever a watched file is written.
//
// Usage:
//
//	reg, err := rules.NewRegistry(logger, cfg)
//	if err != nil {
//	    // handle error
//	}
//	engine := internal.NewEngine(logger, reg)
//
//	issues, err := engine.Run("path/to/file.go")
//	if err != nil {
//	    // handle error
//	}
//	for _, issue := range issues {
//	    fmt.Printf("%s: %s at %s\n", issue.Rule, issue.Message, issue.Start)
//	}
//
// This package is intended for internal use within tpat and should not be
// imported by external packages.
package internal
