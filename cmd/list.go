package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tclemos/vault-bench/benchmark"
)

func newListCmd(a *app) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available benchmarks",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.list()
		},
	}
	listCmd.Flags().StringP("prefix", "p", "", "Only list benchmarks whose id starts with this prefix")
	return listCmd
}

func (a *app) list() error {
	targets := benchmark.TargetsByPrefix(a.v.GetString("prefix"))

	if a.format == FormatJSON {
		ids := make([]string, 0, len(targets))
		for _, t := range targets {
			ids = append(ids, t.ID())
		}
		return writeJSON(a.out, ids)
	}

	var b strings.Builder
	b.WriteString("Available Benchmarks:\n\n")
	fmt.Fprintf(&b, "%-35s %s\n", "ID", "Description")
	b.WriteString(strings.Repeat("-", 70) + "\n")
	for _, t := range targets {
		fmt.Fprintf(&b, "%-35s %s\n", t.ID(), t.Description())
	}
	fmt.Fprintf(&b, "\nTotal: %d benchmark(s)\n", len(targets))
	if _, err := fmt.Fprint(a.out, b.String()); err != nil {
		return ioErr(err)
	}
	return nil
}
