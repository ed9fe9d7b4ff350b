package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adalundhe/meshsim/core/similarity"
)

var (
	similarTopK      int
	similarAlgorithm string
	similarCategory  string
)

var similarCmd = &cobra.Command{
	Use:   "similar <category/split/file>",
	Short: "Rank models by similarity to a query model",
	Long: `Compare the query model against every cataloged model with an external
scorer and print the best matches, highest score first.

Examples:
  meshsim similar chair/train/chair_0001.off
  meshsim similar -k 10 --algorithm octree chair/train/chair_0001.off
  meshsim similar --category chair --json chair/train/chair_0001.off`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().IntVarP(&similarTopK, "top-k", "k", 0, "Number of results (default from config)")
	similarCmd.Flags().StringVarP(&similarAlgorithm, "algorithm", "a", "", "Scorer algorithm: kdtree or octree")
	similarCmd.Flags().StringVarP(&similarCategory, "category", "c", "", "Only compare against this category")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orchestrator.FindSimilar(cmd.Context(), similarity.Request{
		Query:     args[0],
		K:         similarTopK,
		Algorithm: similarAlgorithm,
		Category:  similarCategory,
	})
	if err != nil {
		return fmt.Errorf("similarity search failed: %w", err)
	}

	if rootJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	outputSimilar(cmd.OutOrStdout(), res)
	return nil
}

func outputSimilar(w io.Writer, res *similarity.Result) {
	p := paletteFor(w)
	fmt.Fprintf(w, "%s%sSimilar to%s %s\n", p.bold, p.cyan, p.reset, res.SourceModel)
	fmt.Fprintf(w, "%sMethod:%s %s  %sEvaluated:%s %d", p.gray, p.reset, res.Method, p.gray, p.reset, res.Evaluated)
	if res.Failed > 0 {
		fmt.Fprintf(w, "  %sFailed:%s %s%d%s", p.gray, p.reset, p.red, res.Failed, p.reset)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	for i, r := range res.Results() {
		fmt.Fprintf(w, "%s%d.%s %s%s%s  %s%.6f%s\n",
			p.yellow, i+1, p.reset,
			p.bold, r.Model.ID, p.reset,
			p.green, r.Score, p.reset)
	}
}
