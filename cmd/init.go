package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gastondana627/orielfx/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize orielfx configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the backend connection and generates a .orielfx.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
