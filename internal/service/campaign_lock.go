package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/pkg/lock"
)

// campaignLock serialises writers of one campaign.
// wait <= 0 waits as long as ctx allows.
type campaignLock struct {
	locker lock.Locker
	wait   time.Duration
}

func campaignLockKey(campaignID string) string {
	return "campaign:" + campaignID
}

func (l campaignLock) acquire(ctx context.Context, campaignID string) (func(), error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}
	unlock, err := l.locker.Lock(ctx, campaignLockKey(campaignID))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, fmt.Errorf("%w: campaign %s", common.ErrLockTimeout, campaignID)
		}
		return nil, fmt.Errorf("lock campaign %s: %w", campaignID, err)
	}
	return unlock, nil
}

// acquireAll locks several campaigns in sorted order so two callers never deadlock
func (l campaignLock) acquireAll(ctx context.Context, campaignIDs []string) (func(), error) {
	ids := slices.Clone(campaignIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	unlocks := make([]func(), 0, len(ids))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, id := range ids {
		unlock, err := l.acquire(ctx, id)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}
