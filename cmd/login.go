package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/habedi/portal/auth"
	"github.com/habedi/portal/pkg/clierr"
	"github.com/habedi/portal/pkg/validation"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loginCmd creates a new cobra.Command for logging into the platform.
func loginCmd(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session tokens",
		Long:  "Log in with your email and password. The password is read without echo when stdin is a terminal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				if email, err = promptForInput(cmd, in, "Email: "); err != nil {
					return err
				}
			}
			password, err := promptForPassword(cmd, in, "Password: ")
			if err != nil {
				return err
			}
			if err := validateCredentials(email, password); err != nil {
				return err
			}

			pair, err := c.Login(cmd.Context(), a.cfg.LoginPath, email, password)
			if err != nil {
				return err
			}

			cmd.Println("Login was successful.")
			if claims, err := auth.DecodeClaims(pair.AccessToken); err == nil && claims.Role != "" {
				cmd.Printf("Logged in as user %s (%s).\n", claims.ID, claims.Role)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address; prompted for when empty")

	return cmd
}

// logoutCmd forgets the stored session.
func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				return clierr.New(clierr.Internal, "Failed to clear the session.", err)
			}
			cmd.Println("Logged out.")
			return nil
		},
	}
}

// promptForInput prints prompt and returns the trimmed line read from in.
func promptForInput(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	cmd.Print(prompt)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", clierr.New(clierr.Validation, "Failed to read input.", err)
	}
	return strings.TrimSpace(line), nil
}

// promptForPassword reads a password without echo from a terminal, or a plain line otherwise.
func promptForPassword(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return promptForInput(cmd, in, prompt)
	}
	cmd.Print(prompt)
	password, err := term.ReadPassword(int(f.Fd()))
	cmd.Println()
	if err != nil {
		return "", clierr.New(clierr.Validation, "Failed to read password.", err)
	}
	return strings.TrimSpace(string(password)), nil
}

// validateCredentials checks that the email and password are not empty.
func validateCredentials(email, password string) error {
	if err := validation.ValidateNonEmptyString("email", email); err != nil {
		return clierr.New(clierr.Validation, "Email and password cannot be empty.", err)
	}
	if err := validation.ValidateNonEmptyString("password", password); err != nil {
		return clierr.New(clierr.Validation, "Email and password cannot be empty.", err)
	}
	if !strings.Contains(email, "@") {
		return clierr.New(clierr.Validation, fmt.Sprintf("%q is not an email address.", email), nil)
	}
	return nil
}
