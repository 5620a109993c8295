package family

import (
	"context"
	"time"
)

// Cache holds hydrated family details keyed by family id.
type Cache interface {
	GetDetails(ctx context.Context, familyID string) (*FamilyDetails, bool)
	SetDetails(ctx context.Context, details *FamilyDetails, ttl time.Duration)
	Delete(ctx context.Context, familyID string)
}

type noopCache struct{}

func (noopCache) GetDetails(context.Context, string) (*FamilyDetails, bool) { return nil, false }
func (noopCache) SetDetails(context.Context, *FamilyDetails, time.Duration) {}
func (noopCache) Delete(context.Context, string)                            {}
