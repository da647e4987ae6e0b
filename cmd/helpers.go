package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gastondana627/orielfx/internal/api"
	"github.com/gastondana627/orielfx/internal/auth"
	"github.com/gastondana627/orielfx/internal/config"
	"github.com/gastondana627/orielfx/internal/history"
	"github.com/gastondana627/orielfx/internal/user"
)

// app bundles the wired-up client stack shared by all commands.
type app struct {
	cfg     *config.Config
	client  *api.Client
	auth    *auth.Manager
	user    *user.Service
	history *history.DB
}

// buildApp loads config and constructs the client, session manager, user
// service and local history database.
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}

	db, err := history.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening local history: %w", err)
	}

	client := api.New(api.Config{
		BaseURL: cfg.APIBaseURL,
		HTTPClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		Retry: api.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
			Jitter:      true,
		},
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.Breaker.ResetTimeoutSeconds) * time.Second,
		Record:           db.RecordCall,
	})

	mgr, err := auth.NewManager(client, auth.NewStore(dataDir))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var cache user.PreferencesCache
	if cfg.OfflineCache {
		cache = db
	}

	return &app{
		cfg:     cfg,
		client:  client,
		auth:    mgr,
		user:    user.NewService(client, cache),
		history: db,
	}, nil
}

func (a *app) Close() {
	if a.history != nil {
		a.history.Close()
	}
}
