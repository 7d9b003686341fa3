package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"zotindex/internal/domain"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show collection and library status",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(infoCmd)
}

type libraryStatus struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Items     int    `json:"items"`
	Error     string `json:"error,omitempty"`
}

type statusReport struct {
	Collection domain.CollectionInfo `json:"collection"`
	Library    libraryStatus         `json:"library"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manager, st, err := openManager()
	if err != nil {
		return err
	}
	defer st.Close()

	report := statusReport{Collection: manager.Info(ctx)}
	if lib, err := openLibrary(ctx); err != nil {
		report.Library.Error = err.Error()
	} else {
		defer lib.Close()
		report.Library.Path = lib.Path()
		report.Library.Items, err = lib.Count(ctx)
		if err != nil {
			report.Library.Error = err.Error()
		} else {
			report.Library.Available = true
		}
	}

	out := cmd.OutOrStdout()
	if infoJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	c := report.Collection
	fmt.Fprintf(out, "Collection:  %s\n", c.Name)
	fmt.Fprintf(out, "  Documents: %d\n", c.Count)
	fmt.Fprintf(out, "  Provider:  %s (%s)\n", c.ProviderKind, c.Model)
	fmt.Fprintf(out, "  Location:  %s\n", c.Location)
	if c.Degraded() {
		fmt.Fprintf(out, "  Error:     %s\n", c.Error)
	}

	l := report.Library
	fmt.Fprintf(out, "Library:\n")
	if l.Available {
		fmt.Fprintf(out, "  Database:  %s\n", l.Path)
		fmt.Fprintf(out, "  Items:     %d\n", l.Items)
	} else {
		fmt.Fprintf(out, "  Unavailable: %s\n", l.Error)
	}
	return nil
}
