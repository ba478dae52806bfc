package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoRefreshToken is returned when a refresh is needed but the store has no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token stored")
	// ErrRefreshFailed is returned when the token exchange was rejected or did not complete.
	// The store is cleared before it is returned.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	PerformTokenRefresh(ctx context.Context, refreshToken string) (Pair, error)
}

// Service coordinates token refreshes against a TokenStore.
type Service struct {
	Store     TokenStore
	Refresher Refresher

	// Coalesce makes concurrent callers share one in-flight refresh.
	// Each refresh rotates the refresh token, so parallel exchanges would invalidate each other.
	Coalesce bool

	group singleflight.Group
}

// NewService is the constructor for the auth service. Refreshes are coalesced by default.
func NewService(store TokenStore, refresher Refresher) *Service {
	return &Service{
		Store:     store,
		Refresher: refresher,
		Coalesce:  true,
	}
}

// Refresh exchanges the stored refresh token for a new pair and stores it.
//
// rejected is the access token the server just refused. When coalescing is on and the store
// already holds a different access token, another caller has refreshed in the meantime and that
// token is returned without a network call. Pass "" to always refresh.
//
// A coalesced exchange outlives the caller that started it: cancelling ctx only stops this
// caller's wait, so a rotated pair is still saved for the others.
func (s *Service) Refresh(ctx context.Context, rejected string) (Pair, error) {
	if !s.Coalesce {
		return s.refresh(ctx)
	}

	if rejected != "" {
		if pair, ok := s.current(ctx, rejected); ok {
			log.Debug().Msg("Access token was already refreshed by another request")
			return pair, nil
		}
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		// A flight that finished just before this one started may already have rotated the pair.
		if rejected != "" {
			if pair, ok := s.current(flightCtx, rejected); ok {
				return pair, nil
			}
		}
		return s.refresh(flightCtx)
	})

	select {
	case <-ctx.Done():
		log.Debug().Msg("Stopped waiting for the token refresh")
		return Pair{}, fmt.Errorf("token refresh interrupted: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			log.Debug().Msg("Joined an in-flight token refresh")
		}
		if res.Err != nil {
			return Pair{}, res.Err
		}
		return res.Val.(Pair), nil
	}
}

// current returns the stored pair when its access token differs from rejected.
func (s *Service) current(ctx context.Context, rejected string) (Pair, bool) {
	access, err := s.Store.Get(ctx)
	if err != nil || access == "" || access == rejected {
		return Pair{}, false
	}
	refresh, err := s.Store.GetRefresh(ctx)
	if err != nil {
		return Pair{}, false
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, true
}

func (s *Service) refresh(ctx context.Context) (Pair, error) {
	refreshToken, err := s.Store.GetRefresh(ctx)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to retrieve refresh token: %w", err)
	}
	if refreshToken == "" {
		return Pair{}, ErrNoRefreshToken
	}

	log.Info().Str("refresh_token", Redact(refreshToken)).Msg("Access token rejected, refreshing...")
	pair, err := s.Refresher.PerformTokenRefresh(ctx, refreshToken)
	if err != nil && ctx.Err() != nil {
		// The exchange was abandoned, not rejected: the session stays.
		return Pair{}, fmt.Errorf("token refresh interrupted: %w", ctx.Err())
	}
	if err == nil && pair.AccessToken == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		s.clear(context.WithoutCancel(ctx))
		return Pair{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if pair.RefreshToken == "" {
		// The backend did not rotate the refresh token.
		pair.RefreshToken = refreshToken
	}

	// The backend has consumed the old refresh token, so the new pair is saved even if ctx ends now.
	if err := s.Store.Set(context.WithoutCancel(ctx), pair); err != nil {
		return Pair{}, fmt.Errorf("failed to save refreshed tokens: %w", err)
	}
	log.Info().Str("access_token", Redact(pair.AccessToken)).Msg("Token refreshed and saved successfully.")
	return pair, nil
}

func (s *Service) clear(ctx context.Context) {
	if err := s.Store.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to clear tokens after refresh failure")
	}
}
