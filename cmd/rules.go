package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gnolang/tpat/formatter"
	"github.com/gnolang/tpat/pattern"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the configured rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}
		return listRules(cmd.OutOrStdout(), engine.Registry().AllRules(), splitList(disableRules))
	},
}

var disabledStyle = color.New(color.Faint)

// listRules prints one line per rule in registration order.
func listRules(out io.Writer, all []pattern.Rule, ignored []string) error {
	skip := make(map[string]bool, len(ignored))
	for _, id := range ignored {
		skip[id] = true
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSEVERITY\tFIX\tPATTERN")
	for _, r := range all {
		fix := "-"
		if r.HasReplacement() {
			fix = "yes"
		}
		id := r.ID
		if !r.Enabled || skip[r.ID] {
			id = disabledStyle.Sprint(r.ID + " (disabled)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, r.Pattern.Kind, r.Severity, fix, formatter.FirstLine(r.Pattern.Template))
	}
	return w.Flush()
}
