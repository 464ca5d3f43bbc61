// Package segment routes a PG listing into the self-serve or sales-assisted
// onboarding path.
package segment

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"rentora/internal/marketplace"
)

// SelfServeMaxBeds is the largest bed count still onboarded unassisted.
const SelfServeMaxBeds = 29

// RolePGOperator is the session role allowed to use the remote service.
const RolePGOperator = "pg_operator"

// Threshold is the local fallback rule.
func Threshold(bedCount int) marketplace.SegmentPath {
	if bedCount <= SelfServeMaxBeds {
		return marketplace.PathSelfServe
	}
	return marketplace.PathSalesAssist
}

// Decider prefers the remote segmentation service and falls back to the
// threshold when the caller is unauthenticated, has the wrong role, no
// remote client is configured, or the call fails.
type Decider struct {
	api   marketplace.SegmentAPI
	cache *expirable.LRU[int, marketplace.SegmentPath]
}

func NewDecider(api marketplace.SegmentAPI) *Decider {
	return &Decider{
		api:   api,
		cache: expirable.NewLRU[int, marketplace.SegmentPath](256, nil, 10*time.Minute),
	}
}

func (d *Decider) Decide(ctx context.Context, authenticated bool, role string, bedCount int) marketplace.SegmentPath {
	if d == nil || d.api == nil || !authenticated || role != RolePGOperator {
		return Threshold(bedCount)
	}
	if path, ok := d.cache.Get(bedCount); ok {
		return path
	}
	path, err := d.api.SegmentPG(ctx, bedCount)
	if err != nil || (path != marketplace.PathSelfServe && path != marketplace.PathSalesAssist) {
		log.Printf("pg segmentation fell back to threshold: beds=%d err=%v", bedCount, err)
		return Threshold(bedCount)
	}
	d.cache.Add(bedCount, path)
	return path
}
