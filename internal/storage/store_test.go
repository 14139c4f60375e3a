package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-wallet-sync/config"
)

// storeContract 所有后端共享的行为
func storeContract(t *testing.T, s Store) {
	t.Helper()

	_, found, err := s.GetItem("wallet_coins_cache")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetItem("wallet_coins_cache", `{"data":[]}`))
	require.NoError(t, s.SetItem("wallet_coins_cache", `{"data":[1]}`))

	value, found, err := s.GetItem("wallet_coins_cache")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"data":[1]}`, value)

	require.NoError(t, s.RemoveItem("wallet_coins_cache"))
	require.NoError(t, s.RemoveItem("wallet_coins_cache"))

	_, found, err = s.GetItem("wallet_coins_cache")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	storeContract(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestSQLStore(t *testing.T) {
	s, closeFn, err := Open(config.Storage{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "wallet.db"),
	})
	require.NoError(t, err)
	defer closeFn()

	storeContract(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "wallet_sync:", time.Second)
	storeContract(t, s)

	require.NoError(t, s.SetItem("wallet_prices_cache", "{}"))
	assert.True(t, mr.Exists("wallet_sync:wallet_prices_cache"))
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	s, closeFn, err := Open(config.Storage{
		Driver: "redis",
		Redis:  config.Redis{Addr: mr.Addr(), Prefix: "p:"},
	})
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, s.SetItem("k", "v"))
	got, err := mr.Get("p:k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestOpenMemoryAndUnknown(t *testing.T) {
	s, closeFn, err := Open(config.Storage{Driver: "memory"})
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, &MemoryStore{}, s)

	_, _, err = Open(config.Storage{Driver: "etcd"})
	assert.Error(t, err)
}
