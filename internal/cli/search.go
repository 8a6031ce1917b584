package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/memsync/pkg/remote"
	"github.com/spf13/cobra"
)

var (
	searchType        string
	searchTopK        int
	searchCollections []string
	searchJSON        bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the remote store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchType, "type", "", "search type (CHUNKS, GRAPH_COMPLETION, SUMMARIES)")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "maximum number of results")
	searchCmd.Flags().StringSliceVar(&searchCollections, "collections", nil, "restrict the search to these collections")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if searchType == "" {
		searchType = a.cfg.Search.Type
	}
	if searchTopK <= 0 {
		searchTopK = a.cfg.Search.TopK
	}

	items, err := a.graph.Search(context.Background(), strings.Join(args, " "), remote.SearchOptions{
		SearchType:  searchType,
		TopK:        searchTopK,
		Collections: searchCollections,
	})
	if err != nil {
		return err
	}

	if searchJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(items)
	}

	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No results")
		return nil
	}
	for i, item := range items {
		content := item.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Fprintf(out, "%d. %s\n", i+1, content)
	}
	return nil
}
