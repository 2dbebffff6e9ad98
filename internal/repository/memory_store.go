package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/internal/domain"
)

// memoryStore is a hash-map-backed EntityStore
type memoryStore[T domain.Record[T]] struct {
	kind  domain.EntityType
	newFn func() T
	mu    sync.RWMutex
	items map[string]T
}

func newMemoryStore[T domain.Record[T]](newFn func() T) *memoryStore[T] {
	return &memoryStore[T]{
		kind:  newFn().Kind(),
		newFn: newFn,
		items: make(map[string]T),
	}
}

func (s *memoryStore[T]) Kind() domain.EntityType { return s.kind }

func (s *memoryStore[T]) Get(_ context.Context, id string) (domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	if !ok {
		return nil, common.NewNotFoundError(string(s.kind), id)
	}
	return rec.Clone(), nil
}

func (s *memoryStore[T]) List(_ context.Context, campaignID string) ([]domain.Entity, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.items))
	for id, rec := range s.items {
		if campaignID == "" || rec.GetCampaignID() == campaignID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	out := make([]domain.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id].Clone())
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *memoryStore[T]) Put(_ context.Context, e domain.Entity) (domain.Entity, error) {
	rec, ok := e.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %s store got %T", common.ErrTypeMismatch, s.kind, e)
	}
	if rec.GetID() == "" {
		return nil, common.NewValidationError("id", "is required")
	}
	s.mu.Lock()
	s.items[rec.GetID()] = rec.Clone()
	s.mu.Unlock()
	return rec.Clone(), nil
}

func (s *memoryStore[T]) Remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *memoryStore[T]) Decode(data []byte) (domain.Entity, error) {
	rec := s.newFn()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", s.kind, err)
	}
	return rec, nil
}

// MemoryLedger keeps audit records in insertion order with lookup indexes
type MemoryLedger struct {
	clock      *ledgerClock
	mu         sync.RWMutex
	records    []*domain.AuditLog
	byCampaign map[string][]int
	byEntity   map[string][]int
	byBatch    map[string][]int
}

// NewMemoryLedger creates an empty ledger. now may be nil.
func NewMemoryLedger(now func() time.Time) *MemoryLedger {
	return &MemoryLedger{
		clock:      newLedgerClock(now),
		byCampaign: make(map[string][]int),
		byEntity:   make(map[string][]int),
		byBatch:    make(map[string][]int),
	}
}

func (l *MemoryLedger) Append(_ context.Context, rec *domain.AuditLog) (*domain.AuditLog, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	stored := rec.Clone()

	l.clock.mu.Lock()
	defer l.clock.mu.Unlock()
	l.clock.stamp(stored)

	l.mu.Lock()
	idx := len(l.records)
	stored.Seq = uint64(idx + 1)
	l.records = append(l.records, stored)
	l.byCampaign[stored.CampaignID] = append(l.byCampaign[stored.CampaignID], idx)
	l.byEntity[stored.EntityID] = append(l.byEntity[stored.EntityID], idx)
	if stored.ImportBatchID != "" {
		l.byBatch[stored.ImportBatchID] = append(l.byBatch[stored.ImportBatchID], idx)
	}
	l.mu.Unlock()

	return stored.Clone(), nil
}

func (l *MemoryLedger) ListByCampaign(_ context.Context, campaignID string, limit int) ([]*domain.AuditLog, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.byCampaign[campaignID], true, limit, nil), nil
}

func (l *MemoryLedger) ListByEntity(_ context.Context, entityID string) ([]*domain.AuditLog, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.byEntity[entityID], true, 0, nil), nil
}

func (l *MemoryLedger) ListByImportBatch(_ context.Context, importBatchID string) ([]*domain.AuditLog, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.byBatch[importBatchID], false, 0, nil), nil
}

func (l *MemoryLedger) ListSince(_ context.Context, campaignID string, cutoff time.Time) ([]*domain.AuditLog, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	after := func(rec *domain.AuditLog) bool { return rec.Timestamp.After(cutoff) }
	return l.collect(l.byCampaign[campaignID], true, 0, after), nil
}

// collect must be called with mu held. idx is in insertion order.
func (l *MemoryLedger) collect(idx []int, newestFirst bool, limit int, keep func(*domain.AuditLog) bool) []*domain.AuditLog {
	out := make([]*domain.AuditLog, 0, len(idx))
	for i := range idx {
		pos := i
		if newestFirst {
			pos = len(idx) - 1 - i
		}
		rec := l.records[idx[pos]]
		if keep != nil && !keep(rec) {
			continue
		}
		out = append(out, rec.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// MemoryRegistry is the in-memory backend
type MemoryRegistry struct {
	stores map[domain.EntityType]EntityStore
	ledger *MemoryLedger
}

// NewMemoryRegistry creates isolated in-memory stores and ledger. now may be nil.
func NewMemoryRegistry(now func() time.Time) *MemoryRegistry {
	return &MemoryRegistry{
		stores: map[domain.EntityType]EntityStore{
			domain.EntityCampaign:      newMemoryStore(func() *domain.Campaign { return &domain.Campaign{} }),
			domain.EntityTimelineEvent: newMemoryStore(func() *domain.TimelineEvent { return &domain.TimelineEvent{} }),
			domain.EntityCharacter:     newMemoryStore(func() *domain.Character { return &domain.Character{} }),
			domain.EntityPlot:          newMemoryStore(func() *domain.Plot { return &domain.Plot{} }),
			domain.EntityLore:          newMemoryStore(func() *domain.LoreEntry { return &domain.LoreEntry{} }),
			domain.EntityDocument:      newMemoryStore(func() *domain.Document { return &domain.Document{} }),
		},
		ledger: NewMemoryLedger(now),
	}
}

func (r *MemoryRegistry) Store(kind domain.EntityType) (EntityStore, error) {
	s, ok := r.stores[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownEntityType, kind)
	}
	return s, nil
}

func (r *MemoryRegistry) Ledger() AuditLedger { return r.ledger }

// Transaction runs fn directly; the gateway compensates failed pairs itself
func (r *MemoryRegistry) Transaction(_ context.Context, fn func(tx Registry) error) error {
	return fn(r)
}
