package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/internal/domain"
	"gorm.io/gorm"
)

// Models lists every table owned by this package, for AutoMigrate
func Models() []any {
	return []any{
		&domain.Campaign{},
		&domain.TimelineEvent{},
		&domain.Character{},
		&domain.Plot{},
		&domain.LoreEntry{},
		&domain.Document{},
		&domain.AuditLog{},
	}
}

// gormStore is an EntityStore over one table
type gormStore[T domain.Record[T]] struct {
	db       *gorm.DB
	kind     domain.EntityType
	newFn    func() T
	scopeCol string
}

func newGormStore[T domain.Record[T]](db *gorm.DB, newFn func() T) *gormStore[T] {
	kind := newFn().Kind()
	scope := "campaign_id"
	if kind == domain.EntityCampaign {
		scope = "id"
	}
	return &gormStore[T]{db: db, kind: kind, newFn: newFn, scopeCol: scope}
}

func (s *gormStore[T]) Kind() domain.EntityType { return s.kind }

func (s *gormStore[T]) Get(ctx context.Context, id string) (domain.Entity, error) {
	rec := s.newFn()
	err := s.db.WithContext(ctx).Where("id = ?", id).First(rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewNotFoundError(string(s.kind), id)
		}
		return nil, err
	}
	return rec, nil
}

func (s *gormStore[T]) List(ctx context.Context, campaignID string) ([]domain.Entity, error) {
	var rows []T
	q := s.db.WithContext(ctx).Order("id ASC")
	if campaignID != "" {
		q = q.Where(s.scopeCol+" = ?", campaignID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	return out, nil
}

func (s *gormStore[T]) Put(ctx context.Context, e domain.Entity) (domain.Entity, error) {
	rec, ok := e.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %s store got %T", common.ErrTypeMismatch, s.kind, e)
	}
	if rec.GetID() == "" {
		return nil, common.NewValidationError("id", "is required")
	}
	row := rec.Clone()
	// Save updates by primary key and falls back to insert when no row matched
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return row.Clone(), nil
}

func (s *gormStore[T]) Remove(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(s.newFn())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *gormStore[T]) Decode(data []byte) (domain.Entity, error) {
	rec := s.newFn()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", s.kind, err)
	}
	return rec, nil
}

// GormLedger stores audit records in the audit_log table.
// Seq (auto increment) gives append order.
type GormLedger struct {
	db     *gorm.DB
	clock  *ledgerClock
	loaded *bool
}

func (l *GormLedger) Append(ctx context.Context, rec *domain.AuditLog) (*domain.AuditLog, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	row := rec.Clone()
	row.Seq = 0

	l.clock.mu.Lock()
	if !*l.loaded {
		var latest domain.AuditLog
		err := l.db.WithContext(ctx).Order("seq DESC").Limit(1).Find(&latest).Error
		if err != nil {
			l.clock.mu.Unlock()
			return nil, err
		}
		if latest.Seq != 0 {
			l.clock.last = latest.Timestamp.UTC()
		}
		*l.loaded = true
	}
	l.clock.stamp(row)
	l.clock.mu.Unlock()

	if err := l.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row.Clone(), nil
}

func (l *GormLedger) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]*domain.AuditLog, error) {
	q := l.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return l.find(q)
}

func (l *GormLedger) ListByEntity(ctx context.Context, entityID string) ([]*domain.AuditLog, error) {
	return l.find(l.db.WithContext(ctx).Where("entity_id = ?", entityID).Order("seq DESC"))
}

func (l *GormLedger) ListByImportBatch(ctx context.Context, importBatchID string) ([]*domain.AuditLog, error) {
	return l.find(l.db.WithContext(ctx).Where("import_batch_id = ?", importBatchID).Order("seq ASC"))
}

func (l *GormLedger) ListSince(ctx context.Context, campaignID string, cutoff time.Time) ([]*domain.AuditLog, error) {
	return l.find(l.db.WithContext(ctx).
		Where("campaign_id = ? AND recorded_at > ?", campaignID, cutoff.UTC()).
		Order("seq DESC"))
}

func (l *GormLedger) find(q *gorm.DB) ([]*domain.AuditLog, error) {
	var rows []*domain.AuditLog
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		r.Timestamp = r.Timestamp.UTC()
	}
	return rows, nil
}

// GormRegistry is the SQL backend (MySQL in production, SQLite in tests)
type GormRegistry struct {
	db     *gorm.DB
	clock  *ledgerClock
	loaded *bool
	stores map[domain.EntityType]EntityStore
}

// NewGormRegistry wires stores and ledger over db. now may be nil.
func NewGormRegistry(db *gorm.DB, now func() time.Time) *GormRegistry {
	loaded := false
	return newGormRegistry(db, newLedgerClock(now), &loaded)
}

func newGormRegistry(db *gorm.DB, clock *ledgerClock, loaded *bool) *GormRegistry {
	return &GormRegistry{
		db:     db,
		clock:  clock,
		loaded: loaded,
		stores: map[domain.EntityType]EntityStore{
			domain.EntityCampaign:      newGormStore(db, func() *domain.Campaign { return &domain.Campaign{} }),
			domain.EntityTimelineEvent: newGormStore(db, func() *domain.TimelineEvent { return &domain.TimelineEvent{} }),
			domain.EntityCharacter:     newGormStore(db, func() *domain.Character { return &domain.Character{} }),
			domain.EntityPlot:          newGormStore(db, func() *domain.Plot { return &domain.Plot{} }),
			domain.EntityLore:          newGormStore(db, func() *domain.LoreEntry { return &domain.LoreEntry{} }),
			domain.EntityDocument:      newGormStore(db, func() *domain.Document { return &domain.Document{} }),
		},
	}
}

// AutoMigrate creates or updates every table
func (r *GormRegistry) AutoMigrate() error {
	return r.db.AutoMigrate(Models()...)
}

func (r *GormRegistry) Store(kind domain.EntityType) (EntityStore, error) {
	s, ok := r.stores[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownEntityType, kind)
	}
	return s, nil
}

func (r *GormRegistry) Ledger() AuditLedger {
	return &GormLedger{db: r.db, clock: r.clock, loaded: r.loaded}
}

func (r *GormRegistry) Transaction(ctx context.Context, fn func(tx Registry) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newGormRegistry(tx, r.clock, r.loaded))
	})
}
