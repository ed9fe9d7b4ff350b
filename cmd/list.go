package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/adalundhe/meshsim/core/catalog"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged models",
	Long: `List the models found under the asset root.

Examples:
  meshsim list
  meshsim list --root ./data --json | jq '.models[].filename'`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List model categories",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(categoriesCmd)
}

// listOutput is the JSON output of the list command.
type listOutput struct {
	Models    []catalog.ModelDescriptor `json:"models"`
	CreatedAt time.Time                 `json:"created_at"`
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.orchestrator.ListModels(cmd.Context())
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if rootJSON {
		models := snap.Models
		if models == nil {
			models = []catalog.ModelDescriptor{}
		}
		return writeJSON(cmd.OutOrStdout(), listOutput{Models: models, CreatedAt: snap.CreatedAt})
	}
	outputListing(cmd.OutOrStdout(), snap)
	return nil
}

func outputListing(w io.Writer, snap *catalog.Snapshot) {
	p := paletteFor(w)
	if snap.Len() == 0 {
		fmt.Fprintf(w, "%sNo models found.%s\n", p.yellow, p.reset)
		return
	}
	for _, m := range snap.Models {
		fmt.Fprintf(w, "%s%s%s  %sv=%d f=%d%s\n", p.bold, m.ID, p.reset, p.gray, m.Vertices, m.Faces, p.reset)
	}
	fmt.Fprintf(w, "%s%d models%s\n", p.gray, snap.Len(), p.reset)
}

func runCategories(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cats, err := a.orchestrator.Categories(cmd.Context())
	if err != nil {
		return fmt.Errorf("categories failed: %w", err)
	}
	if cats == nil {
		cats = []string{}
	}

	if rootJSON {
		return writeJSON(cmd.OutOrStdout(), map[string][]string{"categories": cats})
	}
	for _, c := range cats {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	return nil
}
