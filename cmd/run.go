package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tclemos/vault-bench/benchmark"
)

func newRunCmd(a *app) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run benchmarks (all, by prefix or a single target)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd)
		},
	}

	runCmd.Flags().StringP("target", "t", "", "Run a single benchmark target (e.g. encryption-1kb)")
	runCmd.Flags().StringP("prefix", "p", "", "Run every benchmark whose id starts with this prefix (e.g. encryption)")
	runCmd.Flags().Bool("save", true, "Save results to the output directory")
	runCmd.Flags().String("output-dir", benchmark.DefaultOutputDir, "Output directory for results")
	runCmd.Flags().Int("iterations", 0, "Trials per benchmark (0 keeps each target's default)")
	return runCmd
}

func (a *app) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	target := a.v.GetString("target")
	prefix := a.v.GetString("prefix")
	if target != "" && prefix != "" {
		return validationErr("--target and --prefix are mutually exclusive")
	}

	catalog, err := benchmark.NewCatalog(benchmark.CatalogConfig{Iterations: a.v.GetInt("iterations")})
	if err != nil {
		return validationErr("%v", err)
	}
	runner := benchmark.NewRunner(a.log, benchmark.WithCatalog(catalog))

	a.status("Running benchmarks...\n")

	var results []*benchmark.Result
	switch {
	case target != "":
		res, err := runner.RunByID(ctx, target)
		if err != nil {
			return err
		}
		results = []*benchmark.Result{res}
	case prefix != "":
		batch, err := runner.RunByPrefix(ctx, prefix)
		if err != nil {
			return err
		}
		results = batch.Results
	default:
		results = runner.RunAll(ctx).Results
	}

	if err := a.printResults(results, false); err != nil {
		return err
	}

	if a.v.GetBool("save") {
		rio := benchmark.NewResultIO(a.v.GetString("output-dir")).WithLogger(a.log)
		if err := rio.Persist(results); err != nil {
			return ioErr(err)
		}
		a.status("\nResults saved to: %s/", rio.OutputDir())
	}

	a.status("\nCompleted %d benchmark(s)", len(results))
	return nil
}

// printResults renders results in the selected format
func (a *app) printResults(results []*benchmark.Result, detailed bool) error {
	if results == nil {
		results = []*benchmark.Result{}
	}
	switch a.format {
	case FormatJSON:
		return writeJSON(a.out, results)
	case FormatTable:
		if err := benchmark.RenderTable(a.out, results, detailed); err != nil {
			return ioErr(err)
		}
	default:
		if err := benchmark.PrintResults(a.out, results); err != nil {
			return ioErr(err)
		}
	}
	return nil
}
