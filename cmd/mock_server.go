package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/habedi/portal/fallback"
	"github.com/habedi/portal/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// mockServerCmd serves the placeholder data over HTTP so the client can be tried without a backend.
func mockServerCmd() *cobra.Command {
	var addr, prefix string

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a development backend that serves placeholder data",
		Long: "Run a development backend that serves the placeholder data for every endpoint family.\n" +
			"Login, register and refresh hand out development tokens.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return clierr.New(clierr.Network, "Cannot listen on "+addr+".", err)
			}
			handler := fallback.NewHandler(fallback.Default(time.Now))
			if p := strings.TrimRight(prefix, "/"); p != "" {
				handler = http.StripPrefix(p, handler)
			}
			cmd.Printf("Mock server listening on http://%s%s\n", ln.Addr(), strings.TrimRight(prefix, "/"))
			return serve(cmd.Context(), ln, handler)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:3000", "Address to listen on")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "/api", "Path prefix of the API")

	return cmd
}

// serve runs handler on ln until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down mock server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
