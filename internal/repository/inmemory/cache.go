package inmemory

import (
	"context"
	"sync"
	"time"

	familydomain "family-circle-go/internal/domain/family"
	userdomain "family-circle-go/internal/domain/user"
)

// FamilyCache is a process-local family.Cache with per-entry expiry.
type FamilyCache struct {
	mu    sync.RWMutex
	items map[string]detailsItem
	now   func() time.Time
}

type detailsItem struct {
	value     familydomain.FamilyDetails
	expiresAt time.Time
}

func NewFamilyCache() *FamilyCache {
	return &FamilyCache{
		items: make(map[string]detailsItem),
		now:   time.Now,
	}
}

func (c *FamilyCache) GetDetails(_ context.Context, familyID string) (*familydomain.FamilyDetails, bool) {
	now := c.now()

	c.mu.RLock()
	item, ok := c.items[familyID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !item.expiresAt.After(now) {
		c.mu.Lock()
		item, ok = c.items[familyID]
		if ok && !item.expiresAt.After(now) {
			delete(c.items, familyID)
		}
		c.mu.Unlock()
		return nil, false
	}

	return cloneDetails(item.value), true
}

func (c *FamilyCache) SetDetails(ctx context.Context, details *familydomain.FamilyDetails, ttl time.Duration) {
	if details == nil {
		return
	}
	if ttl <= 0 {
		c.Delete(ctx, details.Family.ID)
		return
	}

	c.mu.Lock()
	c.items[details.Family.ID] = detailsItem{
		value:     *cloneDetails(*details),
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *FamilyCache) Delete(_ context.Context, familyID string) {
	c.mu.Lock()
	delete(c.items, familyID)
	c.mu.Unlock()
}

func cloneDetails(details familydomain.FamilyDetails) *familydomain.FamilyDetails {
	members := make([]userdomain.User, len(details.Members))
	for i := range details.Members {
		members[i] = cloneUser(details.Members[i])
	}
	return &familydomain.FamilyDetails{
		Family:  cloneFamily(details.Family),
		Members: members,
	}
}
