package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"zotindex/config"
	"zotindex/internal/adapter/bridge"
)

var (
	bridgeItem    string
	bridgeAdd     []string
	bridgeRemove  []string
	bridgeBatchID string
	noteContent   string
	noteFile      string
	noteMode      string
	noteMarker    string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Write tags and notes through the Zotero write-bridge plugin",
	Long: `The write bridge is a Zotero plugin listening on loopback. Run
"zotindex bridge init" once to register a token with it; the token is
saved to the config file and sent with every later request.`,
}

var bridgeHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the plugin is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newBridgeClient().Health(cmd.Context())
		if err != nil {
			return err
		}
		return printResponse(cmd, resp)
	},
}

var bridgeInitCmd = &cobra.Command{
	Use:   "init [token]",
	Short: "Register a token with the plugin and save it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBridgeInit,
}

var bridgeTagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Add or remove tags on an item",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(bridgeAdd) == 0 && len(bridgeRemove) == 0 {
			return fmt.Errorf("nothing to do: pass --add or --remove")
		}
		batch := bridgeBatchID
		if batch == "" {
			batch = uuid.NewString()
		}
		resp, err := newBridgeClient().Tag(cmd.Context(), bridge.TagRequest{
			ItemKey: bridgeItem,
			Add:     bridgeAdd,
			Remove:  bridgeRemove,
			BatchID: batch,
		})
		if err != nil {
			return err
		}
		return printResponse(cmd, resp)
	},
}

var bridgeNoteCmd = &cobra.Command{
	Use:   "note",
	Short: "Create or update a child note on an item",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		content := noteContent
		if noteFile != "" {
			data, err := os.ReadFile(noteFile)
			if err != nil {
				return fmt.Errorf("failed to read note: %w", err)
			}
			content = string(data)
		}
		if content == "" {
			return fmt.Errorf("note is empty: pass --content or --file")
		}
		resp, err := newBridgeClient().Note(cmd.Context(), bridge.NoteRequest{
			ItemKey: bridgeItem,
			Content: content,
			Mode:    noteMode,
			Marker:  noteMarker,
		})
		if err != nil {
			return err
		}
		return printResponse(cmd, resp)
	},
}

func init() {
	for _, c := range []*cobra.Command{bridgeTagCmd, bridgeNoteCmd} {
		c.Flags().StringVar(&bridgeItem, "item", "", "Zotero item key (required)")
		c.MarkFlagRequired("item")
	}
	bridgeTagCmd.Flags().StringSliceVar(&bridgeAdd, "add", nil, "tags to add")
	bridgeTagCmd.Flags().StringSliceVar(&bridgeRemove, "remove", nil, "tags to remove")
	bridgeTagCmd.Flags().StringVar(&bridgeBatchID, "batch-id", "", "batch id for undo (default is a new UUID)")

	bridgeNoteCmd.Flags().StringVar(&noteContent, "content", "", "note HTML or text")
	bridgeNoteCmd.Flags().StringVar(&noteFile, "file", "", "read the note from a file")
	bridgeNoteCmd.Flags().StringVar(&noteMode, "mode", "upsert", "write mode passed to the plugin")
	bridgeNoteCmd.Flags().StringVar(&noteMarker, "marker", "", "marker identifying the note to update")

	bridgeCmd.AddCommand(bridgeHealthCmd, bridgeInitCmd, bridgeTagCmd, bridgeNoteCmd)
	rootCmd.AddCommand(bridgeCmd)
}

func newBridgeClient() *bridge.Client {
	w := cfg.SemanticSearch.Write
	return bridge.NewClient(w.Endpoint, w.Token)
}

func runBridgeInit(cmd *cobra.Command, args []string) error {
	token := uuid.NewString()
	if len(args) == 1 {
		token = args[0]
	}

	ok, err := newBridgeClient().Init(cmd.Context(), token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: plugin refused the token (it may already be initialised)", bridge.ErrAuth)
	}

	path := settingsPath()
	if err := config.SetBridgeToken(path, token); err != nil {
		return fmt.Errorf("token accepted but could not be saved: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Bridge initialised; token saved to %s\n", path)
	return nil
}

func printResponse(cmd *cobra.Command, resp bridge.Response) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
