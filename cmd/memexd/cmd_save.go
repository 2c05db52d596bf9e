package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memexhq/memex/internal/engine"
	"github.com/memexhq/memex/internal/model"
)

var (
	saveImportance float64
	saveTTLHours   int
	saveTags       []string
)

var saveCmd = &cobra.Command{
	Use:   "save <user_id> <session_id> <content...>",
	Short: "Save a memory",
	Long: `Save a new memory for a user in a session. The session is created
implicitly if it doesn't already exist.

Examples:
  memexd save alice s1 "Go channels are like pipes between goroutines"
  memexd save alice s1 "Important decision" --importance 0.9 --tags meeting,decision`,
	Args: cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		userID, sessionID := args[0], args[1]
		content := strings.Join(args[2:], " ")

		e := openEngine()
		defer e.Close()

		m := &model.Memory{
			UserID:     userID,
			SessionID:  sessionID,
			Content:    content,
			Importance: saveImportance,
			Tags:       saveTags,
		}
		if cmd.Flags().Changed("ttl-hours") {
			ttl := saveTTLHours
			m.TTLHours = &ttl
		}

		saved, err := e.Save(context.Background(), m)
		if err != nil {
			fatalf("error saving memory: %v", err)
		}

		fmt.Printf("Memory saved: %s\n", saved.ID)
		fmt.Printf("  session:    %s\n", saved.SessionID)
		fmt.Printf("  importance: %.2f\n", saved.Importance)
		if saved.ExpiresAt != nil {
			fmt.Printf("  expires:    %s\n", saved.ExpiresAt.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().Float64VarP(&saveImportance, "importance", "i", 0.5, "importance score (0-1)")
	saveCmd.Flags().IntVar(&saveTTLHours, "ttl-hours", 0, "time-to-live in hours (omit for the configured default; 0 or less means no expiry)")
	saveCmd.Flags().StringSliceVarP(&saveTags, "tags", "t", nil, "tags (comma-separated)")
}

func openEngine() *engine.Engine {
	cfg, err := loadConfig()
	if err != nil {
		fatalf("error loading config: %v", err)
	}
	e, err := engine.New(cfg)
	if err != nil {
		fatalf("error opening engine: %v", err)
	}
	return e
}
