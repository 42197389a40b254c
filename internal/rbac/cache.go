package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

const (
	cacheKeyPrefix = "rbac:perm"
	// sharedLookupTimeout bounds a lookup shared by concurrent callers, which
	// outlives any single caller's context.
	sharedLookupTimeout = 5 * time.Second
)

// CachedStore is a Redis read-through cache in front of another PermissionStore.
// Absent records are cached too, so a revoked or granted permission takes up to
// ttl to become visible.
type CachedStore struct {
	next   PermissionStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

type cachedEntry struct {
	Found  bool             `json:"found"`
	Record PermissionRecord `json:"record"`
}

// NewCachedStore wraps next. A nil client or non-positive ttl disables caching.
func NewCachedStore(next PermissionStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{next: next, client: client, ttl: ttl, logger: logger}
}

// Lookup serves from Redis when possible and falls back to the wrapped store.
// Redis failures are logged and bypassed, never treated as a grant.
func (c *CachedStore) Lookup(ctx context.Context, roleID, menuID string) (PermissionRecord, error) {
	if c.client == nil || c.ttl <= 0 {
		return c.next.Lookup(ctx, roleID, menuID)
	}
	key := permissionKey(roleID, menuID)
	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry cachedEntry
		if err := json.Unmarshal(payload, &entry); err == nil {
			return entry.result()
		}
		c.logger.Warn("rbac cache decode", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("rbac cache get", slog.String("key", key), slog.Any("error", err))
		return c.next.Lookup(ctx, roleID, menuID)
	}

	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		rec, err := c.next.Lookup(ctx, roleID, menuID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		entry := cachedEntry{Found: err == nil, Record: rec}
		if raw, err := json.Marshal(entry); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("rbac cache set", slog.String("key", key), slog.Any("error", err))
			}
		}
		return entry, nil
	})
	select {
	case <-ctx.Done():
		return PermissionRecord{}, fmt.Errorf("rbac: cache lookup: %w", ctx.Err())
	case res := <-resultChan:
		if res.Err != nil {
			return PermissionRecord{}, res.Err
		}
		return res.Val.(cachedEntry).result()
	}
}

func (e cachedEntry) result() (PermissionRecord, error) {
	if !e.Found {
		return PermissionRecord{}, shared.ErrNotFound
	}
	return e.Record, nil
}

// permissionKey length-prefixes the role so ids containing ':' cannot collide.
func permissionKey(roleID, menuID string) string {
	return cacheKeyPrefix + ":" + strconv.Itoa(len(roleID)) + ":" + roleID + ":" + menuID
}

var _ PermissionStore = (*CachedStore)(nil)
