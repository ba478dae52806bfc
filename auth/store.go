package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/habedi/portal/db"
)

// Pair is an access token together with the refresh token issued alongside it.
type Pair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// TokenStore holds the current session tokens.
// An absent token is reported as an empty string, not as an error.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	GetRefresh(ctx context.Context) (string, error)
	Set(ctx context.Context, pair Pair) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the tokens in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	pair Pair
}

// NewMemoryStore returns a store seeded with pair. Pass a zero Pair for an empty store.
func NewMemoryStore(pair Pair) *MemoryStore {
	return &MemoryStore{pair: pair}
}

func (s *MemoryStore) Get(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.AccessToken, nil
}

func (s *MemoryStore) GetRefresh(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.RefreshToken, nil
}

func (s *MemoryStore) Set(_ context.Context, pair Pair) error {
	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.pair = Pair{}
	s.mu.Unlock()
	return nil
}

// Snapshot returns both tokens read under one lock.
func (s *MemoryStore) Snapshot() Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

// RepoStore adapts a db.TokenRepository to TokenStore so the session survives between runs.
type RepoStore struct{ repo db.TokenRepository }

// NewRepoStore wraps repo.
func NewRepoStore(repo db.TokenRepository) *RepoStore {
	return &RepoStore{repo: repo}
}

func (s *RepoStore) Get(ctx context.Context) (string, error) {
	tok, err := s.repo.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	if tok == nil {
		return "", nil
	}
	return tok.AccessToken, nil
}

func (s *RepoStore) GetRefresh(ctx context.Context) (string, error) {
	tok, err := s.repo.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	if tok == nil {
		return "", nil
	}
	return tok.RefreshToken, nil
}

func (s *RepoStore) Set(ctx context.Context, pair Pair) error {
	if err := s.repo.Upsert(ctx, &db.Token{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}

func (s *RepoStore) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
