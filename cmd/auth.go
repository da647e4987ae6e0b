package cmd

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Log in to your Oriel account",
	Long: `Authenticates against the backend and stores the session tokens
locally. Subsequent commands reuse the session and refresh it
automatically when the access token expires.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register [email]",
	Short: "Create a new Oriel account",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend health and session status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
}

// promptCredentials collects email and password, using the positional
// email argument when given.
func promptCredentials(args []string) (email, password string, err error) {
	if len(args) > 0 {
		email = args[0]
	} else {
		emailPrompt := promptui.Prompt{
			Label: "Email",
			Validate: func(s string) error {
				if !strings.Contains(s, "@") {
					return fmt.Errorf("must be an email address")
				}
				return nil
			},
		}
		email, err = emailPrompt.Run()
		if err != nil {
			return "", "", fmt.Errorf("email prompt: %w", err)
		}
	}

	passPrompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
	}
	password, err = passPrompt.Run()
	if err != nil {
		return "", "", fmt.Errorf("password prompt: %w", err)
	}
	return email, password, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	email, password, err := promptCredentials(args)
	if err != nil {
		return err
	}

	u, err := a.auth.Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}

	if u != nil && u.Name != "" {
		fmt.Printf("Logged in as %s (%s)\n", u.Name, u.Email)
	} else {
		fmt.Printf("Logged in as %s\n", email)
	}
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	email, password, err := promptCredentials(args)
	if err != nil {
		return err
	}

	namePrompt := promptui.Prompt{Label: "Display name (optional)"}
	name, err := namePrompt.Run()
	if err != nil {
		return fmt.Errorf("name prompt: %w", err)
	}

	u, err := a.auth.Register(cmd.Context(), email, password, name)
	if err != nil {
		return err
	}

	fmt.Printf("Account created for %s\n", email)
	if u != nil && u.Plan != "" {
		fmt.Printf("Plan: %s\n", u.Plan)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.auth.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	health, err := a.client.Health(ctx)
	if err != nil {
		fmt.Printf("Backend:   unreachable (%v)\n", err)
	} else {
		fmt.Printf("Backend:   %s (version %s)\n", health.Status, health.Version)
	}

	if !a.auth.Authenticated() {
		fmt.Println("Session:   not logged in")
		return nil
	}

	st, err := a.auth.Status(ctx)
	switch {
	case err != nil:
		fmt.Printf("Session:   stored, but not verifiable (%v)\n", err)
	case st.Authenticated && st.User != nil:
		fmt.Printf("Session:   logged in as %s\n", st.User.Email)
	default:
		fmt.Println("Session:   token rejected by backend")
	}

	if verbose {
		for endpoint, state := range a.client.BreakerStates() {
			fmt.Printf("Breaker:   %-30s %s\n", endpoint, state)
		}
	}
	return nil
}
