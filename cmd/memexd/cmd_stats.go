package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEngine()
		defer e.Close()

		st, err := e.GetStats()
		if err != nil {
			fatalf("error getting stats: %v", err)
		}
		fmt.Printf("path:           %s\n", st.Path)
		fmt.Printf("schema version: %d\n", st.SchemaVersion)
		fmt.Printf("memories:       %d\n", st.MemoryCount)
		fmt.Printf("sessions:       %d\n", st.SessionCount)
		fmt.Printf("database size:  %d bytes\n", st.DatabaseFileBytes)
	},
}

var statsUserCmd = &cobra.Command{
	Use:   "user <user_id>",
	Short: "Show memory and session statistics for one user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEngine()
		defer e.Close()

		st, err := e.GetUserStats(context.Background(), args[0])
		if err != nil {
			fatalf("error getting user stats: %v", err)
		}
		fmt.Printf("user:                %s\n", st.UserID)
		fmt.Printf("memories:            %d\n", st.MemoryCount)
		fmt.Printf("sessions:            %d\n", st.SessionCount)
		fmt.Printf("average importance:  %.2f\n", st.AverageImportance)
	},
}

var statsAnalyticsCmd = &cobra.Command{
	Use:   "analytics <user_id>",
	Short: "Show per-session memory analytics for one user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEngine()
		defer e.Close()

		analytics, err := e.GetSessionAnalytics(context.Background(), args[0])
		if err != nil {
			fatalf("error getting session analytics: %v", err)
		}
		for _, a := range analytics {
			fmt.Printf("  [%s] %-20s memories=%-4d avg_importance=%.2f last_active=%s\n",
				a.SessionID, a.Name, a.MemoryCount, a.AverageImportance, a.LastActivityAt.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsUserCmd, statsAnalyticsCmd)
}
