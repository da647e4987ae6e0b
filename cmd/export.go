package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gastondana627/orielfx/internal/progress"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download a full export of your account data",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("creating %s: %w", exportOut, err)
		}
		defer f.Close()

		n, err := a.user.ExportData(cmd.Context(), f, progress.NewReporter())
		if err != nil {
			os.Remove(exportOut)
			return err
		}

		fmt.Printf("Exported %d bytes to %s\n", n, exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "oriel-export.json", "output file")
	rootCmd.AddCommand(exportCmd)
}
