package subscription

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

// openers builds one fresh repository per backend that runs without external services.
func openers() map[string]func(t *testing.T) Repository {
	return map[string]func(t *testing.T) Repository{
		"memory": func(*testing.T) Repository {
			return NewMemoryRepository()
		},
		"sqlite": func(t *testing.T) Repository {
			t.Helper()

			repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "subs.db"))
			require.NoError(t, err)

			return repo
		},
		"redis": func(t *testing.T) Repository {
			t.Helper()

			mr := miniredis.RunT(t)

			repo, err := OpenRedis(context.Background(), &redis.Options{Addr: mr.Addr()}, "test:")
			require.NoError(t, err)

			return repo
		},
	}
}

// TestRepository_Contract runs the same behavior checks against every backend.
func TestRepository_Contract(t *testing.T) {
	t.Parallel()

	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			repo := open(t)

			t.Cleanup(func() {
				require.NoError(t, repo.Close())
			})

			testRegisterAndList(t, repo)
			testConcurrentRegister(t, repo)
		})
	}
}

func testRegisterAndList(t *testing.T, repo Repository) {
	t.Helper()

	ctx := context.Background()

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	_, err = repo.Register(ctx, nil)
	require.ErrorIs(t, err, ErrEmptyEndpoint)

	endpoint := []byte(`{"endpoint":"https://push.example/a","keys":{"p256dh":"k","auth":"a"}}`)

	id, err := repo.Register(ctx, endpoint)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	found, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	require.True(t, found)

	found, err = repo.Exists(ctx, "no-such-id")
	require.NoError(t, err)
	require.False(t, found)

	all, err = repo.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, [][]byte{endpoint}, all)
}

// testConcurrentRegister registers two descriptors at once and expects two distinct ids.
func testConcurrentRegister(t *testing.T, repo Repository) {
	t.Helper()

	ctx := context.Background()
	descriptors := [][]byte{[]byte(`{"endpoint":"b"}`), []byte(`{"endpoint":"c"}`)}
	ids := make([]string, len(descriptors))
	errs := make([]error, len(descriptors))

	var wg sync.WaitGroup

	for i, descriptor := range descriptors {
		wg.Go(func() {
			ids[i], errs[i] = repo.Register(ctx, descriptor)
		})
	}

	wg.Wait()

	for i := range descriptors {
		require.NoError(t, errs[i])

		found, err := repo.Exists(ctx, ids[i])
		require.NoError(t, err)
		require.True(t, found)
	}

	require.NotEqual(t, ids[0], ids[1])

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

// TestSQLiteRepository_Reopen checks that records survive a restart and migrations are not reapplied.
func TestSQLiteRepository_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "subs.db")

	repo, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	id, err := repo.Register(ctx, []byte(`{"endpoint":"a"}`))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = OpenSQLite(ctx, path)
	require.NoError(t, err)

	defer func() {
		_ = repo.Close()
	}()

	found, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
}

// TestRedisRepository_Unavailable verifies backend failures are wrapped with ErrUnavailable.
func TestRedisRepository_Unavailable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	ctx := context.Background()

	repo, err := OpenRedis(ctx, &redis.Options{Addr: mr.Addr(), MaxRetries: -1}, "test:")
	require.NoError(t, err)

	defer func() {
		_ = repo.Close()
	}()

	mr.Close()

	_, err = repo.Register(ctx, []byte(`{"endpoint":"a"}`))
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = repo.ListAll(ctx)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = repo.Exists(ctx, "id")
	require.ErrorIs(t, err, ErrUnavailable)
}

// TestRedisRepository_SkipsMissingRecords ensures a dangling index entry does not break listing.
func TestRedisRepository_SkipsMissingRecords(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	ctx := context.Background()

	repo, err := OpenRedis(ctx, &redis.Options{Addr: mr.Addr()}, "test:")
	require.NoError(t, err)

	defer func() {
		_ = repo.Close()
	}()

	_, err = repo.Register(ctx, []byte(`{"endpoint":"a"}`))
	require.NoError(t, err)

	_, err = mr.SetAdd("test:subscriptions", "dangling")
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestMemoryRepository_CopiesEndpoint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepository()
	endpoint := []byte(`{"endpoint":"a"}`)

	_, err := repo.Register(ctx, endpoint)
	require.NoError(t, err)

	endpoint[0] = 'X'

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('{'), all[0][0])
}
