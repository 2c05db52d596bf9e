package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memexhq/memex/internal/model"
)

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run or inspect the decay subsystem",
}

var decayRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a decay pass now",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEngine()
		defer e.Close()

		stats, err := e.Decay(context.Background())
		if err != nil {
			fatalf("error running decay pass: %v", err)
		}
		fmt.Printf("expired:    %d\n", stats.MemoriesExpired)
		fmt.Printf("evicted:    %d\n", stats.MemoriesEvicted)
		fmt.Printf("compressed: %d\n", stats.MemoriesCompressed)
		fmt.Printf("elapsed:    %dms\n", stats.ElapsedMS)
	},
}

var decayAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Show what a decay pass would do without applying it",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEngine()
		defer e.Close()

		plan, err := e.AnalyzeDecay(context.Background())
		if err != nil {
			fatalf("error analyzing decay: %v", err)
		}
		fmt.Printf("would expire:    %d\n", len(plan.WouldExpire))
		fmt.Printf("would evict:     %d\n", len(plan.WouldEvict))
		fmt.Printf("would compress:  %d\n", len(plan.WouldCompress))
	},
}

var (
	policyTTLHours           int
	policyImportanceThresh   float64
	policyMaxPerUser         int
	policyEnableCompression  bool
	policyAutoEvictOnQuota   bool
)

var decayPolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Update the live decay policy",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEngine()
		defer e.Close()

		e.UpdateDecayPolicy(model.DecayPolicy{
			DefaultMemoryTTLHours: policyTTLHours,
			ImportanceThreshold:   policyImportanceThresh,
			MaxMemoriesPerUser:    policyMaxPerUser,
			EnableCompression:     policyEnableCompression,
			AutoEvictOnQuota:      policyAutoEvictOnQuota,
		})
		fmt.Println("decay policy updated")
	},
}

func init() {
	rootCmd.AddCommand(decayCmd)
	decayCmd.AddCommand(decayRunCmd, decayAnalyzeCmd, decayPolicyCmd)

	decayPolicyCmd.Flags().IntVar(&policyTTLHours, "ttl-hours", 720, "default memory TTL in hours")
	decayPolicyCmd.Flags().Float64Var(&policyImportanceThresh, "importance-threshold", 0.3, "low-importance sweep threshold")
	decayPolicyCmd.Flags().IntVar(&policyMaxPerUser, "max-per-user", 10000, "max memories retained per user")
	decayPolicyCmd.Flags().BoolVar(&policyEnableCompression, "enable-compression", true, "also truncate the content of old, low-importance memories")
	decayPolicyCmd.Flags().BoolVar(&policyAutoEvictOnQuota, "auto-evict-on-quota", false, "evict lowest-importance memories once a user is over quota")
}
