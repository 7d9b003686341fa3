package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every document in the collection",
	Long: `Drop the configured collection and recreate it empty, bound to the
same embedding provider. Requires --yes.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return fmt.Errorf("refusing to reset collection %q without --yes", cfg.SemanticSearch.CollectionName)
	}

	manager, st, err := openManager()
	if err != nil {
		return err
	}
	defer st.Close()

	info := manager.Info(cmd.Context())
	if err := manager.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d documents from %s\n", info.Count, manager.Name())
	return nil
}
