package service

import (
	"context"
	"fmt"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/internal/domain"
	"github.com/damoang/campaign-chronicle/internal/repository"
	"github.com/damoang/campaign-chronicle/pkg/lock"
	pkglogger "github.com/damoang/campaign-chronicle/pkg/logger"
)

// Gateway is the only writer of entity stores and the audit ledger during normal operation.
// Each create/update/delete stores the entity and appends exactly one audit record
// as one unit, serialised per campaign.
type Gateway struct {
	reg  repository.Registry
	lock campaignLock
	now  func() time.Time
}

// NewGateway creates a Gateway. lockWait bounds how long a write waits for its
// campaign; now may be nil.
func NewGateway(reg repository.Registry, locker lock.Locker, lockWait time.Duration, now func() time.Time) *Gateway {
	if now == nil {
		now = time.Now
	}
	return &Gateway{
		reg:  reg,
		lock: campaignLock{locker: locker, wait: lockWait},
		now:  now,
	}
}

// Registry exposes the backing registry for read paths (audit queries)
func (g *Gateway) Registry() repository.Registry {
	return g.reg
}

func (g *Gateway) timestamp() time.Time {
	return g.now().UTC().Truncate(time.Millisecond)
}

// Get returns one entity
func (g *Gateway) Get(ctx context.Context, kind domain.EntityType, id string) (domain.Entity, error) {
	store, err := g.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, id)
}

// List returns the entities of kind owned by campaignID
func (g *Gateway) List(ctx context.Context, kind domain.EntityType, campaignID string) ([]domain.Entity, error) {
	store, err := g.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	return store.List(ctx, campaignID)
}

// Decode parses a request body into an entity of kind
func (g *Gateway) Decode(kind domain.EntityType, data []byte) (domain.Entity, error) {
	store, err := g.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	e, err := store.Decode(data)
	if err != nil {
		return nil, common.NewValidationError("", err.Error())
	}
	return e, nil
}

// Create assigns a new id and defaults, stores e and records a create.
// Any id supplied by the caller is replaced.
func (g *Gateway) Create(ctx context.Context, e domain.Entity, mc domain.MutationContext) (domain.Entity, error) {
	if err := mc.Validate(); err != nil {
		return nil, err
	}
	store, err := g.reg.Store(e.Kind())
	if err != nil {
		return nil, err
	}

	e.SetID(repository.NewEntityID())
	e.ApplyDefaults(g.timestamp())
	if err := e.Validate(); err != nil {
		return nil, err
	}

	unlock, err := g.lock.acquire(ctx, e.GetCampaignID())
	if err != nil {
		return nil, err
	}
	defer unlock()

	var stored domain.Entity
	err = g.reg.Transaction(ctx, func(tx repository.Registry) error {
		txStore, err := tx.Store(store.Kind())
		if err != nil {
			return err
		}
		stored, err = txStore.Put(ctx, e)
		if err != nil {
			return err
		}
		snap, err := domain.Snapshot(stored)
		if err != nil {
			return err
		}
		rec := g.record(stored, domain.ActionCreate, nil, snap, mc)
		if _, err := tx.Ledger().Append(ctx, rec); err != nil {
			g.compensate(ctx, txStore, stored.GetID(), nil)
			return fmt.Errorf("append audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	auditRecordsTotal.WithLabelValues(string(stored.Kind()), string(domain.ActionCreate), string(mc.Source)).Inc()
	return stored, nil
}

// Update overlays changes on the current entity and records both snapshots
func (g *Gateway) Update(ctx context.Context, kind domain.EntityType, id string, changes map[string]any, mc domain.MutationContext) (domain.Entity, error) {
	if err := mc.Validate(); err != nil {
		return nil, err
	}
	store, err := g.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	// campaignId never changes, so the lock scope can be taken from a pre-read
	current, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := g.lock.acquire(ctx, current.GetCampaignID())
	if err != nil {
		return nil, err
	}
	defer unlock()

	var merged domain.Entity
	err = g.reg.Transaction(ctx, func(tx repository.Registry) error {
		txStore, err := tx.Store(kind)
		if err != nil {
			return err
		}
		before, err := txStore.Get(ctx, id)
		if err != nil {
			return err
		}
		next, err := domain.Merge(before, changes)
		if err != nil {
			return err
		}
		next.ApplyDefaults(g.timestamp())
		if err := next.Validate(); err != nil {
			return err
		}
		oldSnap, err := domain.Snapshot(before)
		if err != nil {
			return err
		}
		merged, err = txStore.Put(ctx, next)
		if err != nil {
			return err
		}
		newSnap, err := domain.Snapshot(merged)
		if err != nil {
			return err
		}
		rec := g.record(merged, domain.ActionUpdate, oldSnap, newSnap, mc)
		if _, err := tx.Ledger().Append(ctx, rec); err != nil {
			g.compensate(ctx, txStore, id, before)
			return fmt.Errorf("append audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	auditRecordsTotal.WithLabelValues(string(kind), string(domain.ActionUpdate), string(mc.Source)).Inc()
	return merged, nil
}

// Delete removes an existing entity and records its last snapshot
func (g *Gateway) Delete(ctx context.Context, kind domain.EntityType, id string, mc domain.MutationContext) (bool, error) {
	if err := mc.Validate(); err != nil {
		return false, err
	}
	store, err := g.reg.Store(kind)
	if err != nil {
		return false, err
	}
	current, err := store.Get(ctx, id)
	if err != nil {
		return false, err
	}

	unlock, err := g.lock.acquire(ctx, current.GetCampaignID())
	if err != nil {
		return false, err
	}
	defer unlock()

	err = g.reg.Transaction(ctx, func(tx repository.Registry) error {
		txStore, err := tx.Store(kind)
		if err != nil {
			return err
		}
		before, err := txStore.Get(ctx, id)
		if err != nil {
			return err
		}
		oldSnap, err := domain.Snapshot(before)
		if err != nil {
			return err
		}
		removed, err := txStore.Remove(ctx, id)
		if err != nil {
			return err
		}
		if !removed {
			return common.NewNotFoundError(string(kind), id)
		}
		rec := g.record(before, domain.ActionDelete, oldSnap, nil, mc)
		if _, err := tx.Ledger().Append(ctx, rec); err != nil {
			g.compensate(ctx, txStore, id, before)
			return fmt.Errorf("append audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	auditRecordsTotal.WithLabelValues(string(kind), string(domain.ActionDelete), string(mc.Source)).Inc()
	return true, nil
}

func (g *Gateway) record(e domain.Entity, action domain.AuditAction, oldSnap, newSnap []byte, mc domain.MutationContext) *domain.AuditLog {
	return &domain.AuditLog{
		CampaignID:    e.GetCampaignID(),
		EntityType:    e.Kind(),
		EntityID:      e.GetID(),
		Action:        action,
		OldValue:      oldSnap,
		NewValue:      newSnap,
		Source:        mc.Source,
		ImportBatchID: mc.ImportBatchID,
		Timestamp:     g.now(),
		Metadata:      mc.Metadata,
	}
}

// compensate undoes a store write whose audit append failed.
// Transactional backends roll back anyway; the in-memory backend relies on this.
func (g *Gateway) compensate(ctx context.Context, store repository.EntityStore, id string, before domain.Entity) {
	var err error
	if before == nil {
		_, err = store.Remove(ctx, id)
	} else {
		_, err = store.Put(ctx, before)
	}
	if err != nil {
		pkglogger.GetLogger().Error().Err(err).
			Str("entity_type", string(store.Kind())).
			Str("entity_id", id).
			Msg("failed to compensate store write after audit append failure")
	}
}
