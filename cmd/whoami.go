package cmd

import (
	"time"

	"github.com/habedi/portal/auth"
	"github.com/habedi/portal/client"
	"github.com/habedi/portal/pkg/clierr"
	"github.com/spf13/cobra"
)

// whoamiCmd shows the claims carried by the stored access token. Nothing is sent to the backend.
func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who the stored session belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			token, err := c.Store().Get(cmd.Context())
			if err != nil {
				return clierr.New(clierr.Internal, "Failed to read the session.", err)
			}
			if token == "" {
				return client.ErrAuthenticationRequired
			}

			claims, err := auth.DecodeClaims(token)
			if err != nil {
				return clierr.New(clierr.Auth, "The stored access token cannot be decoded. Please run 'portal login'.", err)
			}

			cmd.Println("User ID:", orDash(claims.ID))
			cmd.Println("Role:", orDash(claims.Role))
			cmd.Println("Municipality:", orDash(claims.MunicipalityID))
			if !claims.ExpiresAt.IsZero() {
				expires := claims.ExpiresAt.Local().Format(time.RFC1123)
				if claims.Expired(time.Now()) {
					expires += " (expired, it is refreshed on the next request)"
				}
				cmd.Println("Expires:", expires)
			}
			cmd.Println("Token:", auth.Redact(token))
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
