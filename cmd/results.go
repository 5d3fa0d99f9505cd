package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tclemos/vault-bench/benchmark"
)

func newResultsCmd(a *app) *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Show saved benchmark results",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.results()
		},
	}
	resultsCmd.Flags().String("path", benchmark.DefaultOutputDir, "Results directory")
	resultsCmd.Flags().Bool("latest", false, "Show only the latest result per target")
	resultsCmd.Flags().BoolP("detailed", "d", false, "Show every metric in table output")
	return resultsCmd
}

func (a *app) results() error {
	rio := benchmark.NewResultIO(a.v.GetString("path")).WithLogger(a.log)
	results, err := rio.ReadResults()
	if err != nil {
		return ioErr(err)
	}

	if len(results) == 0 {
		if a.format == FormatJSON {
			return writeJSON(a.out, []*benchmark.Result{})
		}
		a.status("No benchmark results found.")
		return nil
	}

	if a.v.GetBool("latest") {
		results = benchmark.LatestByTarget(results)
	}
	return a.printResults(results, a.v.GetBool("detailed"))
}
