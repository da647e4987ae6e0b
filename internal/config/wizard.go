package config

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to orielfx! Let's configure your client.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Backend URL.
	urlPrompt := promptui.Prompt{
		Label:   "Backend API base URL",
		Default: cfg.APIBaseURL,
		Validate: func(s string) error {
			u, err := url.Parse(s)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("must be an absolute URL")
			}
			return nil
		},
	}
	baseURL, err := urlPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("backend URL prompt: %w", err)
	}
	cfg.APIBaseURL = baseURL

	// 2. Request timeout.
	timeoutPrompt := promptui.Prompt{
		Label:   "Request timeout (seconds)",
		Default: strconv.Itoa(cfg.RequestTimeoutSeconds),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	timeoutStr, err := timeoutPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("timeout prompt: %w", err)
	}
	cfg.RequestTimeoutSeconds, _ = strconv.Atoi(timeoutStr)

	// 3. Offline cache.
	cachePrompt := promptui.Select{
		Label: "Cache preferences locally for offline reads",
		Items: []string{"yes", "no"},
	}
	_, cacheStr, err := cachePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("offline cache prompt: %w", err)
	}
	cfg.OfflineCache = cacheStr == "yes"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
