package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/utrading/utrading-wallet-sync/config"
	"github.com/utrading/utrading-wallet-sync/internal/dal"
	"github.com/utrading/utrading-wallet-sync/internal/dao"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Open 按 driver 创建存储，返回的 close 函数用于释放连接
func Open(cfg config.Storage) (Store, func(), error) {
	switch cfg.Driver {
	case DriverMemory:
		logger.Info().Msg("storage: memory")
		return NewMemoryStore(), func() {}, nil

	case dal.DriverSQLite, dal.DriverMySQL:
		db, err := dal.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err = dal.AutoMigrate(db); err != nil {
			dal.Close(db)
			return nil, nil, err
		}
		logger.Info().Str("driver", cfg.Driver).Msg("storage: sql")
		return NewSQLStore(dao.NewStorageItemDAO(db)), func() { dal.Close(db) }, nil

	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := NewRedisStore(client, cfg.Redis.Prefix, cfg.Redis.Timeout)

		ctx, cancel := context.WithTimeout(context.Background(), store.timeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("storage: redis")
		return store, func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis failed")
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
