package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "orielfx",
	Short: "Command-line client for the Oriel Signal FX Pro backend",
	Long: `orielfx manages your Oriel Signal FX Pro account from the terminal:
authentication, profile and visualizer preferences, data export, and a
local development backend. All API traffic goes through a resilient
client with per-endpoint circuit breaking and automatic token refresh.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".orielfx.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
