package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/habedi/portal/auth"
	"github.com/rs/zerolog/log"
)

// ErrOffline is returned by Login when the backend could not be reached and the fallback
// registry answered instead. Placeholder data never carries usable tokens.
var ErrOffline = errors.New("backend unreachable, cannot log in while offline")

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login posts the credentials to loginPath and stores the returned token pair.
func (c *Client) Login(ctx context.Context, loginPath, email, password string) (auth.Pair, error) {
	if email == "" || password == "" {
		return auth.Pair{}, fmt.Errorf("email and password cannot be empty")
	}

	var pair auth.Pair
	resp, err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Endpoint: loginPath,
		Body:     JSONBody(credentials{Email: email, Password: password}),
	}, &pair)
	if err != nil {
		return auth.Pair{}, err
	}
	if resp.Fallback {
		return auth.Pair{}, ErrOffline
	}
	if pair.AccessToken == "" {
		return auth.Pair{}, fmt.Errorf("%w: %s: login response carried no access token", ErrInvalidResponse, loginPath)
	}

	if err := c.store.Set(ctx, pair); err != nil {
		return auth.Pair{}, err
	}
	log.Info().Str("access_token", auth.Redact(pair.AccessToken)).Msg("Logged in and saved tokens")
	return pair, nil
}

// Logout forgets the stored session. The backend is not contacted.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	log.Info().Msg("Session cleared")
	return nil
}
