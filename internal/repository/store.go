package repository

import (
	"context"
	"sync"
	"time"

	"github.com/damoang/campaign-chronicle/internal/domain"
	"github.com/google/uuid"
)

// EntityStore is keyed storage for one entity kind.
// Implementations store copies: mutating a returned entity never changes stored state.
type EntityStore interface {
	Kind() domain.EntityType
	// Get returns a *common.NotFoundError when id is absent
	Get(ctx context.Context, id string) (domain.Entity, error)
	// List returns the entities owned by campaignID in id order; empty campaignID lists everything
	List(ctx context.Context, campaignID string) ([]domain.Entity, error)
	// Put inserts or overwrites by id
	Put(ctx context.Context, e domain.Entity) (domain.Entity, error)
	// Remove reports whether something was removed
	Remove(ctx context.Context, id string) (bool, error)
	// Decode parses a JSON snapshot into an entity of this kind
	Decode(data []byte) (domain.Entity, error)
}

// AuditLedger is the append-only log of mutation records
type AuditLedger interface {
	// Append assigns ID and Timestamp when unset. Timestamps never go backwards:
	// a record stamped earlier than the latest appended one is clamped up to it.
	Append(ctx context.Context, rec *domain.AuditLog) (*domain.AuditLog, error)
	// ListByCampaign is most-recent-first; limit <= 0 means no limit
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]*domain.AuditLog, error)
	// ListByEntity is most-recent-first
	ListByEntity(ctx context.Context, entityID string) ([]*domain.AuditLog, error)
	// ListByImportBatch is oldest-first (creation order)
	ListByImportBatch(ctx context.Context, importBatchID string) ([]*domain.AuditLog, error)
	// ListSince returns records of campaignID with timestamp strictly after cutoff, most-recent-first
	ListSince(ctx context.Context, campaignID string, cutoff time.Time) ([]*domain.AuditLog, error)
}

// Registry groups the entity stores and the ledger of one backend
type Registry interface {
	Store(kind domain.EntityType) (EntityStore, error)
	Ledger() AuditLedger
	// Transaction runs fn against a registry whose writes commit or roll back together.
	// Backends without transactions run fn directly.
	Transaction(ctx context.Context, fn func(tx Registry) error) error
}

// NewEntityID returns a time-ordered id, so id order equals creation order
func NewEntityID() string {
	return newV7()
}

func newV7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ledgerClock stamps records so timestamps strictly increase in append order.
// One clock is shared by a ledger and every transaction-scoped copy of it.
type ledgerClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newLedgerClock(now func() time.Time) *ledgerClock {
	if now == nil {
		now = time.Now
	}
	return &ledgerClock{now: now}
}

// stamp must be called with mu held
func (c *ledgerClock) stamp(rec *domain.AuditLog) {
	if rec.ID == "" {
		rec.ID = newV7()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = c.now()
	}
	rec.Timestamp = rec.Timestamp.UTC().Truncate(domain.TimestampPrecision)
	if !c.last.IsZero() && !rec.Timestamp.After(c.last) {
		rec.Timestamp = c.last.Add(domain.TimestampPrecision)
	}
	c.last = rec.Timestamp
}
