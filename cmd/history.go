package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent API calls made by this client",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := buildApp()
		exitOnError(err)
		defer a.Close()

		entries, err := a.history.Recent(historyLimit)
		exitOnError(err)

		if len(entries) == 0 {
			fmt.Println("No API calls recorded yet.")
			return
		}

		fmt.Printf("%-20s %-6s %-28s %-6s %-13s %8s\n", "TIME", "METHOD", "ENDPOINT", "STATUS", "OUTCOME", "LATENCY")
		for _, e := range entries {
			fmt.Printf("%-20s %-6s %-28s %-6d %-13s %6dms\n",
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Method, e.Endpoint, e.Status, e.Outcome, e.LatencyMS)
		}
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")
	rootCmd.AddCommand(historyCmd)
}
