package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memexhq/memex/internal/model"
)

var (
	recallSession string
	recallLimit   int
	recallOffset  int
	recallQuery   string
)

var recallCmd = &cobra.Command{
	Use:   "recall <user_id>",
	Short: "Recall memories for a user",
	Long: `Recall lists a user's memories in recency order, optionally scoped to
a session. Pass --q to run a full-text keyword search instead.

Examples:
  memexd recall alice --session s1 --limit 10
  memexd recall alice --q "API design decisions"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		userID := args[0]
		filter := &model.QueryFilter{
			UserID:    userID,
			SessionID: recallSession,
			Limit:     recallLimit,
			Offset:    recallOffset,
		}

		e := openEngine()
		defer e.Close()

		ctx := context.Background()
		if recallQuery != "" {
			filter.Keywords = strings.Fields(strings.TrimSpace(recallQuery))
			page, err := e.Search(ctx, filter)
			if err != nil {
				fatalf("error searching memories: %v", err)
			}
			printSearchResults(page)
			return
		}

		page, err := e.Recall(ctx, filter)
		if err != nil {
			fatalf("error recalling memories: %v", err)
		}
		printMemories(page)
	},
}

func init() {
	rootCmd.AddCommand(recallCmd)
	recallCmd.Flags().StringVar(&recallSession, "session", "", "restrict to a session")
	recallCmd.Flags().IntVarP(&recallLimit, "limit", "l", model.DefaultLimit, "max results")
	recallCmd.Flags().IntVar(&recallOffset, "offset", 0, "pagination offset")
	recallCmd.Flags().StringVar(&recallQuery, "q", "", "full-text keyword search query")
}

func printMemories(page model.PageResponse[model.Memory]) {
	fmt.Printf("%d of %d memories\n", len(page.Data), page.TotalCount)
	for _, m := range page.Data {
		fmt.Printf("  [%s] (%.2f) %s\n", m.ID, m.Importance, truncate(m.Content, 80))
	}
}

func printSearchResults(page model.PageResponse[model.SearchResult]) {
	fmt.Printf("%d of %d results\n", len(page.Data), page.TotalCount)
	for _, r := range page.Data {
		fmt.Printf("  [%s] (score %.3f) %s\n", r.Memory.ID, r.Relevance, truncate(r.Memory.Content, 80))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
