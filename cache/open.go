package cache

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Store backends accepted by OpenStore.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// StoreConfig selects and configures the durable store.
type StoreConfig struct {
	Backend    string
	SQLitePath string
	Redis      RedisConfig
}

// OpenStore opens the configured backend. It never fails: an unusable SQLite
// file is moved aside and recreated, and when no durable store can be opened
// the cache runs from memory for the rest of the process.
func OpenStore(cfg StoreConfig, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore()
	case BackendRedis:
		s, err := NewRedisStore(cfg.Redis)
		if err != nil {
			logger.Warn("redis cache store unavailable, using memory", zap.Error(err))
			return NewMemoryStore()
		}
		return s
	default:
		s, err := OpenSQLiteStore(cfg.SQLitePath)
		if err == nil {
			return s
		}
		logger.Warn("cache database unusable, recreating", zap.String("path", cfg.SQLitePath), zap.Error(err))

		if _, statErr := os.Stat(cfg.SQLitePath); statErr == nil {
			aside := fmt.Sprintf("%s.corrupt-%d", cfg.SQLitePath, time.Now().Unix())
			if err := os.Rename(cfg.SQLitePath, aside); err != nil {
				logger.Warn("failed to move cache database aside", zap.Error(err))
			}
		}
		s, err = OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			logger.Warn("cache database still unusable, using memory", zap.Error(err))
			return NewMemoryStore()
		}
		return s
	}
}
