package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gastondana627/orielfx/internal/devserver"
)

var (
	servePort     int
	serveAllowAll bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local development backend",
	Long: `Starts an in-memory stand-in for the Oriel backend on the given port.
Accounts and preferences live only for the lifetime of the process.
Useful for developing against orielfx without the real service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := devserver.New(devserver.Config{
			Port:     servePort,
			Version:  Version,
			AllowAll: serveAllowAll,
		})
		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "port to listen on")
	serveCmd.Flags().BoolVar(&serveAllowAll, "allow-all-origins", false, "allow all CORS origins")
	rootCmd.AddCommand(serveCmd)
}
