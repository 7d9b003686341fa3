package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"zotindex/internal/domain"
	"zotindex/internal/port"
	"zotindex/internal/usecase"
)

var (
	queryText     string
	queryTopK     int
	queryWhere    string
	queryWhereDoc string
	queryJSON     bool
	queryNaive    bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the library",
	Long: `Search the vector index for items similar to the query. When the index
is empty, or --naive is given, falls back to case-insensitive substring
matching over the Zotero database.

Filters use the Chroma dialect and are passed as JSON.

Examples:
  zotindex query -q "variational inference"
  zotindex query -q "neural" -k 5 --where '{"has_notes": true}'
  zotindex query -q "priors" --where-document '{"$contains": "Gelman"}' --json`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 10, "number of results")
	queryCmd.Flags().StringVar(&queryWhere, "where", "", "metadata filter as JSON")
	queryCmd.Flags().StringVar(&queryWhereDoc, "where-document", "", "document text filter as JSON")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryNaive, "naive", false, "skip the vector index")
	queryCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var where domain.Where
	if err := parseFilter(queryWhere, &where); err != nil {
		return fmt.Errorf("invalid --where: %w", err)
	}
	var whereDoc domain.WhereDocument
	if err := parseFilter(queryWhereDoc, &whereDoc); err != nil {
		return fmt.Errorf("invalid --where-document: %w", err)
	}

	var manager *usecase.IndexManager
	if !queryNaive {
		m, st, err := openManager()
		if err != nil {
			return err
		}
		defer st.Close()
		manager = m
	}

	// The library is optional while the index has documents.
	var source port.ItemSource
	lib, libErr := openLibrary(ctx)
	if libErr == nil {
		defer lib.Close()
		source = lib
	} else {
		logger.Debug("Zotero database unavailable", "error", libErr)
	}
	searchUC := usecase.NewSearchUseCase(manager, source, logger)

	var (
		resp *usecase.SearchResponse
		err  error
	)
	if queryNaive {
		if source == nil {
			return fmt.Errorf("naive search needs the Zotero database: %w", libErr)
		}
		resp, err = searchUC.SearchNaive(ctx, queryText, queryTopK, where, whereDoc)
	} else {
		resp, err = searchUC.Search(ctx, queryText, queryTopK, where, whereDoc)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printMatches(cmd.OutOrStdout(), queryText, resp)
	return nil
}

func parseFilter(raw string, dst any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidFilter, err)
	}
	return nil
}

func printMatches(w io.Writer, query string, resp *usecase.SearchResponse) {
	if len(resp.Matches) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	mode := "semantic"
	if resp.Naive {
		mode = "naive"
	}
	fmt.Fprintf(w, "Found %d results for: %s (%s)\n\n", len(resp.Matches), query, mode)
	for i, m := range resp.Matches {
		title, _ := m.Metadata["title"].(string)
		if title == "" {
			title = "(untitled)"
		}
		if resp.Naive {
			fmt.Fprintf(w, "--- [%d] %s %s ---\n", i+1, m.ID, title)
		} else {
			fmt.Fprintf(w, "--- [%d] %s %s (score: %.3f) ---\n", i+1, m.ID, title, m.Score)
		}
		if creators, _ := m.Metadata["creators"].(string); creators != "" {
			fmt.Fprintf(w, "    %s\n", creators)
		}
		fmt.Fprintln(w, truncate(m.Text, 300))
		fmt.Fprintln(w)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
