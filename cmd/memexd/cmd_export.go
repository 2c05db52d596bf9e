package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <user_id>",
	Short: "Export every memory a user owns as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEngine()
		defer e.Close()

		memories, err := e.ExportUserMemories(context.Background(), args[0])
		if err != nil {
			fatalf("error exporting memories: %v", err)
		}
		out, err := json.MarshalIndent(memories, "", "  ")
		if err != nil {
			fatalf("error encoding export: %v", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
