package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	prefTheme      string
	prefVisualizer string
	prefReactivity float64
	prefReduced    bool
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show your visualizer preferences",
	Long: `Fetches the visualizer preferences stored on your account. When the
backend is unreachable and offline_cache is enabled, the last
synced copy is shown instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		prefs, fromCache, err := a.user.Preferences(cmd.Context())
		if err != nil {
			return err
		}

		if fromCache {
			fmt.Println("(backend unreachable, showing last synced preferences)")
		}
		fmt.Printf("Theme:             %s\n", prefs.Theme)
		fmt.Printf("Visualizer:        %s\n", prefs.Visualizer)
		fmt.Printf("Audio reactivity:  %.2f\n", prefs.AudioReactivity)
		fmt.Printf("Reduced motion:    %t\n", prefs.ReducedMotion)
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update visualizer preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		// Start from the current server-side preferences so unset flags
		// keep their values.
		prefs, _, err := a.user.Preferences(ctx)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("theme") {
			prefs.Theme = prefTheme
		}
		if cmd.Flags().Changed("visualizer") {
			prefs.Visualizer = prefVisualizer
		}
		if cmd.Flags().Changed("reactivity") {
			prefs.AudioReactivity = prefReactivity
		}
		if cmd.Flags().Changed("reduced-motion") {
			prefs.ReducedMotion = prefReduced
		}

		if err := a.user.UpdatePreferences(ctx, prefs); err != nil {
			return err
		}
		fmt.Println("Preferences updated.")
		return nil
	},
}

func init() {
	prefsSetCmd.Flags().StringVar(&prefTheme, "theme", "", "UI theme (dark, light)")
	prefsSetCmd.Flags().StringVar(&prefVisualizer, "visualizer", "", "visualizer style (geometric, waveform, particles)")
	prefsSetCmd.Flags().Float64Var(&prefReactivity, "reactivity", 0, "audio reactivity, 0.0 to 1.0")
	prefsSetCmd.Flags().BoolVar(&prefReduced, "reduced-motion", false, "reduce animations")
	prefsCmd.AddCommand(prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}
