package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and search a user's sessions",
}

var sessionsSearchCmd = &cobra.Command{
	Use:   "search <user_id> <keywords...>",
	Short: "List sessions whose memories match the given keywords",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		userID := args[0]
		keywords := args[1:]

		e := openEngine()
		defer e.Close()

		sessions, err := e.SearchSessions(context.Background(), userID, keywords)
		if err != nil {
			fatalf("error searching sessions: %v", err)
		}
		fmt.Printf("%d sessions match %s\n", len(sessions), strings.Join(keywords, " "))
		for _, s := range sessions {
			fmt.Printf("  [%s] %s (last active %s)\n", s.ID, s.Name, s.LastActivityAt.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsSearchCmd)
}
