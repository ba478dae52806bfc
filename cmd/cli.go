package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/habedi/portal/auth"
	"github.com/habedi/portal/client"
	"github.com/habedi/portal/config"
	"github.com/habedi/portal/db"
	"github.com/habedi/portal/fallback"
	"github.com/habedi/portal/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app is the state the commands share. The session is opened lazily so that
// commands without one (version, mock-server) never touch config or the database.
type app struct {
	configPath string
	timeout    time.Duration

	cfg    *config.Config
	client *client.Client
}

func Execute(ctx context.Context) {
	a := &app{}
	rootCmd := createRootCmd(a)
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	err := rootCmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		cliErr := toCLIError(err)
		log.Error().Err(err).Str("type", string(cliErr.Type)).Msg("Command execution failed.")
		rootCmd.PrintErrln("Error:", cliErr.Message)
		os.Exit(cliErr.ExitCode())
	}
}

func createRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "portal",
		Short:         "Command-line client for the course, job board and municipality platform",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (default $"+config.PathEnv+")")
	rootCmd.PersistentFlags().DurationVarP(&a.timeout, "timeout", "T", 0, "HTTP timeout; overrides the configured value")

	rootCmd.AddCommand(
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		callCmd(a),
		listCmd(a),
		uploadCmd(a),
		batchCmd(a),
		mockServerCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

// session loads the configuration, opens the token database and builds the API client.
func (a *app) session() (*client.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, clierr.New(clierr.Validation, "Invalid configuration: "+err.Error(), err)
	}
	if a.timeout < 0 {
		return nil, clierr.New(clierr.Validation, "Timeout must be positive.", nil)
	}
	if a.timeout > 0 {
		cfg.Timeout = a.timeout
	}

	db.Path = cfg.DatabasePath()
	if err := db.InitDB(); err != nil {
		return nil, clierr.New(clierr.Internal, "Failed to open the session database.", err)
	}

	store := auth.NewRepoStore(db.NewTokenRepository(db.GetDB()))
	httpClient := &http.Client{Timeout: cfg.Timeout}
	service := auth.NewService(store, client.NewHTTPRefresher(cfg.RefreshURL(), httpClient))
	service.Coalesce = !cfg.DisableCoalescing

	opts := []client.Option{
		client.WithHTTPClient(httpClient),
		client.WithPublicPaths(cfg.PublicPaths),
	}
	if !cfg.DisableFallback {
		opts = append(opts, client.WithFallback(fallback.Default(time.Now)))
	}

	a.cfg = cfg
	a.client = client.New(cfg.BaseURL, store, service, opts...)
	log.Debug().Str("base_url", cfg.BaseURL).Str("db", db.Path).Dur("timeout", cfg.Timeout).Msg("Session ready")
	return a.client, nil
}

func (a *app) close() {
	if a.client == nil {
		return
	}
	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close the database.")
	}
	a.client = nil
	a.cfg = nil
}

// toCLIError turns any command error into a user-facing one.
func toCLIError(err error) *clierr.Error {
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		return cliErr
	}

	switch {
	case errors.Is(err, client.ErrAuthenticationRequired):
		return clierr.New(clierr.Auth, "You are not logged in. Please run 'portal login'.", err)
	case errors.Is(err, client.ErrAuthenticationFailed):
		return clierr.New(clierr.Auth, "Your session has expired. Please run 'portal login' again.", err)
	case errors.Is(err, client.ErrOffline), errors.Is(err, client.ErrTransport):
		return clierr.New(clierr.Network, "The backend could not be reached: "+err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return clierr.New(clierr.Network, "The request timed out.", err)
	case errors.Is(err, context.Canceled):
		return clierr.New(clierr.Internal, "Cancelled.", err)
	case client.StatusCode(err) != 0, errors.Is(err, client.ErrInvalidResponse):
		return clierr.New(clierr.HTTP, err.Error(), err)
	default:
		return clierr.New(clierr.Internal, err.Error(), err)
	}
}
