package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gastondana627/orielfx/internal/user"
)

var profileName string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your account profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.user.Profile(cmd.Context())
		if err != nil {
			return err
		}
		printProfile(p)
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		if profileName == "" {
			return fmt.Errorf("nothing to update: pass --name")
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.user.UpdateProfile(cmd.Context(), user.ProfileUpdate{Name: profileName})
		if err != nil {
			return err
		}
		fmt.Println("Profile updated.")
		printProfile(p)
		return nil
	},
}

func init() {
	profileSetCmd.Flags().StringVar(&profileName, "name", "", "display name")
	profileCmd.AddCommand(profileSetCmd)
	rootCmd.AddCommand(profileCmd)
}

func printProfile(p *user.Profile) {
	fmt.Printf("Email:   %s\n", p.Email)
	if p.Name != "" {
		fmt.Printf("Name:    %s\n", p.Name)
	}
	if p.Plan != "" {
		fmt.Printf("Plan:    %s\n", p.Plan)
	}
	if p.CreatedAt != "" {
		fmt.Printf("Since:   %s\n", p.CreatedAt)
	}
}
