package auth_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/habedi/portal/auth"
	"github.com/habedi/portal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newRepoStore(t *testing.T) *auth.RepoStore {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "session.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&db.Token{}))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return auth.NewRepoStore(db.NewTokenRepository(gormDB))
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) auth.TokenStore{
		"memory": func(t *testing.T) auth.TokenStore { return auth.NewMemoryStore(auth.Pair{}) },
		"repo":   func(t *testing.T) auth.TokenStore { return newRepoStore(t) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			access, err := store.Get(ctx)
			require.NoError(t, err)
			assert.Empty(t, access, "empty store reports absence, not an error")

			require.NoError(t, store.Set(ctx, auth.Pair{AccessToken: "A", RefreshToken: "R"}))
			access, err = store.Get(ctx)
			require.NoError(t, err)
			refresh, err := store.GetRefresh(ctx)
			require.NoError(t, err)
			assert.Equal(t, "A", access)
			assert.Equal(t, "R", refresh)

			require.NoError(t, store.Set(ctx, auth.Pair{AccessToken: "B", RefreshToken: "R2"}))
			access, _ = store.Get(ctx)
			refresh, _ = store.GetRefresh(ctx)
			assert.Equal(t, "B", access)
			assert.Equal(t, "R2", refresh)

			require.NoError(t, store.Clear(ctx))
			access, _ = store.Get(ctx)
			refresh, _ = store.GetRefresh(ctx)
			assert.Empty(t, access)
			assert.Empty(t, refresh)
		})
	}
}

func TestRepoStore_SurfacesStorageErrors(t *testing.T) {
	store := auth.NewRepoStore(db.NewTokenRepository(nil))
	ctx := context.Background()

	_, err := store.Get(ctx)
	assert.Error(t, err)
	_, err = store.GetRefresh(ctx)
	assert.Error(t, err)
	assert.Error(t, store.Set(ctx, auth.Pair{AccessToken: "A"}))
	assert.Error(t, store.Clear(ctx))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", auth.Redact(""))
	assert.Equal(t, "[REDACTED_TOKEN]", auth.Redact("short"))
	assert.Equal(t, "eyJh...[REDACTED_TOKEN]", auth.Redact("eyJhbGciOiJIUzI1NiJ9"))
}
