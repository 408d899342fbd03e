package rcache

import "github.com/conversa/ragcore/internal/config"

// NewFromConfig builds a Cache from configuration, selecting memory or redis as the
// underlying Store per cfg.Backend.
func NewFromConfig(cfg config.CacheConfig) *Cache {
	var store Store
	switch cfg.Backend {
	case "redis":
		store = NewRedisStore(cfg.RedisAddr, "")
	default:
		store = NewMemoryStore(cfg.MaxEntries)
	}
	return New(store, cfg.TTL, cfg.MaxEntries)
}
