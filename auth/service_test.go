package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habedi/portal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRefresher struct {
	calls       atomic.Int32
	got         []string
	mu          sync.Mutex
	pair        auth.Pair
	errToReturn error
	delay       time.Duration
}

func (m *mockRefresher) PerformTokenRefresh(ctx context.Context, refreshToken string) (auth.Pair, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.got = append(m.got, refreshToken)
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.errToReturn != nil {
		return auth.Pair{}, m.errToReturn
	}
	return m.pair, nil
}

type failingStore struct {
	auth.MemoryStore
	setErr error
}

func (f *failingStore) Set(ctx context.Context, pair auth.Pair) error { return f.setErr }

func TestRefresh_StoresNewPair(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "A", RefreshToken: "R"})
	refresher := &mockRefresher{pair: auth.Pair{AccessToken: "B", RefreshToken: "R2"}}
	service := auth.NewService(store, refresher)

	pair, err := service.Refresh(context.Background(), "A")

	require.NoError(t, err)
	assert.Equal(t, auth.Pair{AccessToken: "B", RefreshToken: "R2"}, pair)
	assert.Equal(t, auth.Pair{AccessToken: "B", RefreshToken: "R2"}, store.Snapshot())
	assert.Equal(t, []string{"R"}, refresher.got)
}

func TestRefresh_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "A", RefreshToken: "R"})
	service := auth.NewService(store, &mockRefresher{pair: auth.Pair{AccessToken: "B"}})

	_, err := service.Refresh(context.Background(), "A")

	require.NoError(t, err)
	assert.Equal(t, auth.Pair{AccessToken: "B", RefreshToken: "R"}, store.Snapshot())
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "A"})
	refresher := &mockRefresher{}
	service := auth.NewService(store, refresher)

	_, err := service.Refresh(context.Background(), "A")

	require.ErrorIs(t, err, auth.ErrNoRefreshToken)
	assert.Zero(t, refresher.calls.Load(), "no exchange without a refresh token")
}

func TestRefresh_FailureClearsStore(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "A", RefreshToken: "R"})
	service := auth.NewService(store, &mockRefresher{errToReturn: errors.New("status 401")})

	_, err := service.Refresh(context.Background(), "A")

	require.ErrorIs(t, err, auth.ErrRefreshFailed)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, auth.Pair{}, store.Snapshot())
}

func TestRefresh_EmptyAccessTokenIsFailure(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "A", RefreshToken: "R"})
	service := auth.NewService(store, &mockRefresher{pair: auth.Pair{RefreshToken: "R2"}})

	_, err := service.Refresh(context.Background(), "A")

	require.ErrorIs(t, err, auth.ErrRefreshFailed)
	assert.Equal(t, auth.Pair{}, store.Snapshot())
}

func TestRefresh_SaveFailure(t *testing.T) {
	store := &failingStore{setErr: errors.New("disk full")}
	require.NoError(t, store.MemoryStore.Set(context.Background(), auth.Pair{AccessToken: "A", RefreshToken: "R"}))
	service := auth.NewService(store, &mockRefresher{pair: auth.Pair{AccessToken: "B", RefreshToken: "R2"}})

	_, err := service.Refresh(context.Background(), "A")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotErrorIs(t, err, auth.ErrRefreshFailed)
}

func TestRefresh_SkipsWhenAlreadyRefreshed(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "B", RefreshToken: "R2"})
	refresher := &mockRefresher{pair: auth.Pair{AccessToken: "C", RefreshToken: "R3"}}
	service := auth.NewService(store, refresher)

	pair, err := service.Refresh(context.Background(), "A")

	require.NoError(t, err)
	assert.Equal(t, "B", pair.AccessToken)
	assert.Zero(t, refresher.calls.Load())
}

func TestRefresh_ConcurrentCallersShareOneExchange(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "A", RefreshToken: "R"})
	refresher := &mockRefresher{pair: auth.Pair{AccessToken: "B", RefreshToken: "R2"}, delay: 50 * time.Millisecond}
	service := auth.NewService(store, refresher)

	var wg sync.WaitGroup
	results := make([]auth.Pair, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.Refresh(context.Background(), "A")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "B", results[i].AccessToken)
	}
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestRefresh_WithoutCoalescingEachCallerRefreshes(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "B", RefreshToken: "R2"})
	refresher := &mockRefresher{pair: auth.Pair{AccessToken: "C", RefreshToken: "R3"}}
	service := auth.NewService(store, refresher)
	service.Coalesce = false

	_, err := service.Refresh(context.Background(), "A")
	require.NoError(t, err)
	_, err = service.Refresh(context.Background(), "A")
	require.NoError(t, err)

	assert.Equal(t, int32(2), refresher.calls.Load())
	assert.Equal(t, []string{"R2", "R3"}, refresher.got)
}

// gatedRefresher blocks every exchange until release is closed or the exchange's context ends.
type gatedRefresher struct {
	started chan struct{}
	release chan struct{}
	pair    auth.Pair
	calls   atomic.Int32
	once    sync.Once
}

func newGatedRefresher(pair auth.Pair) *gatedRefresher {
	return &gatedRefresher{started: make(chan struct{}), release: make(chan struct{}), pair: pair}
}

func (g *gatedRefresher) PerformTokenRefresh(ctx context.Context, refreshToken string) (auth.Pair, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return g.pair, nil
	case <-ctx.Done():
		return auth.Pair{}, ctx.Err()
	}
}

// cancellingRefresher completes the exchange but cancels the caller's context on the way out.
type cancellingRefresher struct {
	cancel context.CancelFunc
	pair   auth.Pair
}

func (c *cancellingRefresher) PerformTokenRefresh(ctx context.Context, refreshToken string) (auth.Pair, error) {
	c.cancel()
	return c.pair, nil
}

// ctxCheckingStore refuses writes with a finished context, like a database driver would.
type ctxCheckingStore struct{ *auth.MemoryStore }

func (s ctxCheckingStore) Set(ctx context.Context, pair auth.Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, pair)
}

func (s ctxCheckingStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Clear(ctx)
}

func TestRefresh_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "A", RefreshToken: "R"})
	refresher := newGatedRefresher(auth.Pair{AccessToken: "B", RefreshToken: "R2"})
	service := auth.NewService(store, refresher)

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := service.Refresh(leaderCtx, "A")
		leaderErr <- err
	}()
	<-refresher.started

	type result struct {
		pair auth.Pair
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		pair, err := service.Refresh(context.Background(), "A")
		follower <- result{pair, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-leaderErr
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, auth.ErrRefreshFailed)
	assert.Equal(t, auth.Pair{AccessToken: "A", RefreshToken: "R"}, store.Snapshot(), "cancelling must not clear the session")

	close(refresher.release)
	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, auth.Pair{AccessToken: "B", RefreshToken: "R2"}, res.pair)
	assert.Equal(t, auth.Pair{AccessToken: "B", RefreshToken: "R2"}, store.Snapshot())
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestRefresh_CancelledWithoutCoalescingKeepsSession(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "A", RefreshToken: "R"})
	refresher := newGatedRefresher(auth.Pair{AccessToken: "B", RefreshToken: "R2"})
	service := auth.NewService(store, refresher)
	service.Coalesce = false

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := service.Refresh(ctx, "A")
		errCh <- err
	}()
	<-refresher.started
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, auth.ErrRefreshFailed)
	assert.Equal(t, auth.Pair{AccessToken: "A", RefreshToken: "R"}, store.Snapshot())
}

func TestRefresh_SavesRotatedPairWhenCancelledAfterExchange(t *testing.T) {
	for _, coalesce := range []bool{true, false} {
		store := ctxCheckingStore{auth.NewMemoryStore(auth.Pair{AccessToken: "A", RefreshToken: "R"})}
		ctx, cancel := context.WithCancel(context.Background())
		service := auth.NewService(store, &cancellingRefresher{cancel: cancel, pair: auth.Pair{AccessToken: "B", RefreshToken: "R2"}})
		service.Coalesce = coalesce

		_, _ = service.Refresh(ctx, "A")

		assert.Eventually(t, func() bool {
			return store.Snapshot() == auth.Pair{AccessToken: "B", RefreshToken: "R2"}
		}, time.Second, 5*time.Millisecond, "coalesce=%v", coalesce)
	}
}
