package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	local, err := NewLocalBackend(t.TempDir(), "")
	require.NoError(t, err)

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"local":  local,
	}
}

func TestBackendRoundTrip(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "backups/full_1/data/users.json"
			payload := []byte(`[{"id":"u1"}]`)

			exists, err := backend.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, exists)

			require.NoError(t, backend.Put(ctx, key, payload))

			exists, err = backend.Exists(ctx, key)
			require.NoError(t, err)
			assert.True(t, exists)

			got, err := backend.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			require.NoError(t, backend.Delete(ctx, key))
			exists, err = backend.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestBackendGetMissingKey(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := backend.Get(context.Background(), "no/such/key")
			assert.Error(t, err)
		})
	}
}

func TestBackendDeleteMissingKeyIsIdempotent(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, backend.Delete(context.Background(), "no/such/key"))
		})
	}
}

func TestBackendListByPrefix(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, backend.Put(ctx, "backups/full_1/data/users.json", []byte("a")))
			require.NoError(t, backend.Put(ctx, "backups/full_1/snapshot.json", []byte("bb")))
			require.NoError(t, backend.Put(ctx, "backups/full_2/data/users.json", []byte("c")))
			require.NoError(t, backend.Put(ctx, "catalog/index.json", []byte("d")))

			objects, err := backend.List(ctx, "backups/full_1/")
			require.NoError(t, err)
			require.Len(t, objects, 2)

			keys := make(map[string]int64, len(objects))
			for _, obj := range objects {
				keys[obj.Key] = obj.Size
			}
			assert.Equal(t, int64(1), keys["backups/full_1/data/users.json"])
			assert.Equal(t, int64(2), keys["backups/full_1/snapshot.json"])
		})
	}
}

func TestBackendListEmptyPrefix(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			objects, err := backend.List(context.Background(), "backups/")
			require.NoError(t, err)
			assert.Empty(t, objects)
		})
	}
}

func TestBackendHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, backend.Put(ctx, "k", []byte("v")))
			_, err := backend.Get(ctx, "k")
			assert.Error(t, err)
		})
	}
}

func TestMemoryBackendCopiesData(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	payload := []byte("original")
	require.NoError(t, backend.Put(ctx, "k", payload))
	payload[0] = 'X'

	got, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestLocalBackendPrefix(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir(), "team-a/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "catalog/index.json", []byte("x")))

	exists, err := backend.Exists(ctx, "catalog/index.json")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := backend.Get(ctx, "catalog/index.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestLocalBackendPrefixListDeleteRoundTrip(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir(), "team-a/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "backups/full_1/data/users.json", []byte("x")))

	// Listed keys are backend-relative, not prefixed
	objects, err := backend.List(ctx, "backups/full_1/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "backups/full_1/data/users.json", objects[0].Key)

	// A listed key must resolve back through Get and Delete
	got, err := backend.Get(ctx, objects[0].Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)

	require.NoError(t, backend.Delete(ctx, objects[0].Key))
	exists, err := backend.Exists(ctx, "backups/full_1/data/users.json")
	require.NoError(t, err)
	assert.False(t, exists)
}
