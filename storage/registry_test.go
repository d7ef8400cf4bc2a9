package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/storage"
	_ "github.com/govm-net/sandbox/storage/memory"
	_ "github.com/govm-net/sandbox/storage/sqlite"
	_ "github.com/govm-net/sandbox/storage/tmdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRegistered(t *testing.T) {
	assert.Equal(t, []storage.BackendType{
		storage.MemoryBackendType,
		storage.SQLiteBackendType,
		storage.TMDBBackendType,
	}, storage.ListRegistered())

	err := storage.Register(storage.MemoryBackendType, nil)
	assert.Error(t, err)

	_, err = storage.Open(api.Storage{Backend: "redis"})
	assert.Error(t, err)
}

func TestBackends(t *testing.T) {
	dir := t.TempDir()
	cases := []api.Storage{
		{Backend: "memory"},
		{Backend: ""},
		{Backend: "sqlite", Path: filepath.Join(dir, "state.db")},
		{Backend: "tmdb"},
		{Backend: "tmdb", Path: filepath.Join(dir, "leveldb")},
	}
	for _, conf := range cases {
		t.Run(conf.Backend+conf.Path, func(t *testing.T) {
			backend, err := storage.Open(conf)
			require.NoError(t, err)
			defer backend.Close()

			_, found, err := backend.Get("currency.balances:alice")
			require.NoError(t, err)
			assert.False(t, found)

			err = backend.Commit([]storage.Write{
				{Key: "currency.balances:alice", Value: []byte("100")},
				{Key: "currency.balances:bob", Value: []byte("5")},
				{Key: "currency.balances:alice", Value: []byte("90")},
			})
			require.NoError(t, err)

			value, found, err := backend.Get("currency.balances:alice")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("90"), value)

			err = backend.Commit([]storage.Write{
				{Key: "currency.balances:bob", Delete: true},
			})
			require.NoError(t, err)
			_, found, err = backend.Get("currency.balances:bob")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}
