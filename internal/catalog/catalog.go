// Package catalog serves the character catalogs used by pairing games. Reads
// go through Redis when a client is configured; the database is always the
// source of truth, so a cold or broken cache only costs a query.
package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

// DefaultCatalogID is the catalog pairing games use unless a game overrides it.
const DefaultCatalogID = "EMPAREJA2-CHARACTERS-v1"

type Service struct {
	store  store.Store
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New builds a Service. rdb may be nil, which disables caching entirely.
func New(st store.Store, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{store: st, rdb: rdb, ttl: ttl, logger: logger}
}

// Characters returns the catalog, from cache when possible. A cache failure
// of any kind falls through to the database.
func (s *Service) Characters(ctx context.Context, catalogID string) ([]stand.Character, error) {
	if catalogID == "" {
		catalogID = DefaultCatalogID
	}

	key := cacheKey(catalogID)
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var items []stand.Character
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, nil
			}
			s.logger.Warn("corrupt catalog cache entry", "key", key)
		} else if err != redis.Nil {
			s.logger.Warn("catalog cache read failed", "key", key, "error", err)
		}
	}

	items, err := s.store.ListCatalog(ctx, catalogID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil && len(items) > 0 {
		if raw, err := json.Marshal(items); err == nil {
			if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("catalog cache write failed", "key", key, "error", err)
			}
		}
	}
	return items, nil
}

// Replace overwrites a catalog and invalidates its cache entry.
func (s *Service) Replace(ctx context.Context, catalogID string, items []stand.Character) error {
	for i := range items {
		items[i].CatalogID = catalogID
	}
	if err := s.store.PutCatalog(ctx, items); err != nil {
		return err
	}
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, cacheKey(catalogID)).Err(); err != nil {
			s.logger.Warn("catalog cache invalidation failed", "catalog_id", catalogID, "error", err)
		}
	}
	return nil
}

func cacheKey(catalogID string) string {
	return "catalog:" + catalogID
}
