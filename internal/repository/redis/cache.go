// Package redis shares cached family details between instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	familydomain "family-circle-go/internal/domain/family"
	"family-circle-go/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const familyDetailsKeyPrefix = "family:details:"

// FamilyCache implements family.Cache. Redis failures are logged and treated
// as misses so the store stays the source of truth.
type FamilyCache struct {
	client redis.UniversalClient
	log    logger.Logger
}

func NewFamilyCache(client redis.UniversalClient, log logger.Logger) *FamilyCache {
	return &FamilyCache{client: client, log: log}
}

func (c *FamilyCache) GetDetails(ctx context.Context, familyID string) (*familydomain.FamilyDetails, bool) {
	raw, err := c.client.Get(ctx, familyDetailsKeyPrefix+familyID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("cache: redis get failed", "family_id", familyID, "err", err)
		return nil, false
	}

	var details familydomain.FamilyDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		c.log.Warn("cache: corrupt family details", "family_id", familyID, "err", err)
		c.Delete(ctx, familyID)
		return nil, false
	}
	return &details, true
}

func (c *FamilyCache) SetDetails(ctx context.Context, details *familydomain.FamilyDetails, ttl time.Duration) {
	if details == nil {
		return
	}
	if ttl <= 0 {
		c.Delete(ctx, details.Family.ID)
		return
	}

	raw, err := json.Marshal(details)
	if err != nil {
		c.log.Warn("cache: encode family details", "family_id", details.Family.ID, "err", err)
		return
	}
	if err := c.client.Set(ctx, familyDetailsKeyPrefix+details.Family.ID, raw, ttl).Err(); err != nil {
		c.log.Warn("cache: redis set failed", "family_id", details.Family.ID, "err", err)
	}
}

func (c *FamilyCache) Delete(ctx context.Context, familyID string) {
	if err := c.client.Del(ctx, familyDetailsKeyPrefix+familyID).Err(); err != nil {
		c.log.Warn("cache: redis delete failed", "family_id", familyID, "err", err)
	}
}
