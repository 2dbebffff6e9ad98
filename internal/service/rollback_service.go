package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/internal/domain"
	"github.com/damoang/campaign-chronicle/internal/repository"
	"github.com/damoang/campaign-chronicle/pkg/lock"
	pkglogger "github.com/damoang/campaign-chronicle/pkg/logger"
	"github.com/rs/zerolog"
)

// BatchRollbackResult summarises rollbackImportBatch
type BatchRollbackResult struct {
	Success       bool `json:"success"`
	RestoredCount int  `json:"restoredCount"`
	DeletedCount  int  `json:"deletedCount"`
	SkippedCount  int  `json:"skippedCount"`
}

// TimestampRollbackResult summarises rollbackToTimestamp
type TimestampRollbackResult struct {
	Success         bool `json:"success"`
	ChangesReverted int  `json:"changesReverted"`
	SkippedCount    int  `json:"skippedCount"`
}

// revertOutcome is what applying one inverse did to the stores
type revertOutcome int

const (
	revertNoop revertOutcome = iota
	revertDeleted
	revertRestored
)

func (o revertOutcome) String() string {
	switch o {
	case revertDeleted:
		return "deleted"
	case revertRestored:
		return "restored"
	}
	return "noop"
}

// RollbackService reverses recorded mutations by writing inverse values straight
// into the entity stores. Per-record failures are logged and skipped.
type RollbackService struct {
	reg             repository.Registry
	lock            campaignLock
	recordRollbacks bool
	now             func() time.Time
}

// NewRollbackService creates a RollbackService. When recordRollbacks is set every
// inverse write appends its own audit record with source=rollback.
func NewRollbackService(reg repository.Registry, locker lock.Locker, lockWait time.Duration, recordRollbacks bool, now func() time.Time) *RollbackService {
	if now == nil {
		now = time.Now
	}
	return &RollbackService{
		reg:             reg,
		lock:            campaignLock{locker: locker, wait: lockWait},
		recordRollbacks: recordRollbacks,
		now:             now,
	}
}

// RollbackImportBatch undoes every record of one import batch, newest first.
// Running it again is safe: already-reverted creates are no-ops.
func (s *RollbackService) RollbackImportBatch(ctx context.Context, importBatchID string) (*BatchRollbackResult, error) {
	result := &BatchRollbackResult{}
	log := pkglogger.GetLogger().With().Str("import_batch_id", importBatchID).Logger()

	records, err := s.reg.Ledger().ListByImportBatch(ctx, importBatchID)
	if err != nil {
		rollbacksTotal.WithLabelValues("import", "failed").Inc()
		return result, fmt.Errorf("%w: read import batch %s: %v", common.ErrRollbackFailed, importBatchID, err)
	}

	campaigns := make([]string, 0, 1)
	for _, rec := range records {
		campaigns = append(campaigns, rec.CampaignID)
	}
	unlock, err := s.lock.acquireAll(ctx, campaigns)
	if err != nil {
		return result, err
	}
	defer unlock()

	// re-read under the lock so records appended meanwhile are included
	records, err = s.reg.Ledger().ListByImportBatch(ctx, importBatchID)
	if err != nil {
		rollbacksTotal.WithLabelValues("import", "failed").Inc()
		return result, fmt.Errorf("%w: read import batch %s: %v", common.ErrRollbackFailed, importBatchID, err)
	}

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		outcome, err := s.apply(ctx, rec)
		if err != nil {
			result.SkippedCount++
			s.logSkipped(log, rec, err)
			rollbackRecordsTotal.WithLabelValues("import", "skipped").Inc()
			continue
		}
		switch outcome {
		case revertDeleted:
			result.DeletedCount++
		case revertRestored:
			result.RestoredCount++
		}
		rollbackRecordsTotal.WithLabelValues("import", outcome.String()).Inc()
	}

	result.Success = true
	rollbacksTotal.WithLabelValues("import", "success").Inc()
	log.Info().
		Int("records", len(records)).
		Int("deleted", result.DeletedCount).
		Int("restored", result.RestoredCount).
		Int("skipped", result.SkippedCount).
		Msg("import batch rolled back")
	return result, nil
}

// RollbackToTimestamp undoes every record of the campaign stamped strictly after cutoff, newest first
func (s *RollbackService) RollbackToTimestamp(ctx context.Context, campaignID string, cutoff time.Time) (*TimestampRollbackResult, error) {
	result := &TimestampRollbackResult{}
	log := pkglogger.WithCampaignID(campaignID).With().Time("cutoff", cutoff).Logger()

	unlock, err := s.lock.acquire(ctx, campaignID)
	if err != nil {
		return result, err
	}
	defer unlock()

	records, err := s.reg.Ledger().ListSince(ctx, campaignID, cutoff)
	if err != nil {
		rollbacksTotal.WithLabelValues("timestamp", "failed").Inc()
		return result, fmt.Errorf("%w: read ledger for campaign %s: %v", common.ErrRollbackFailed, campaignID, err)
	}

	for _, rec := range records {
		outcome, err := s.apply(ctx, rec)
		if err != nil {
			result.SkippedCount++
			s.logSkipped(log, rec, err)
			rollbackRecordsTotal.WithLabelValues("timestamp", "skipped").Inc()
			continue
		}
		if outcome != revertNoop {
			result.ChangesReverted++
		}
		rollbackRecordsTotal.WithLabelValues("timestamp", outcome.String()).Inc()
	}

	result.Success = true
	rollbacksTotal.WithLabelValues("timestamp", "success").Inc()
	log.Info().
		Int("records", len(records)).
		Int("reverted", result.ChangesReverted).
		Int("skipped", result.SkippedCount).
		Msg("campaign rolled back to timestamp")
	return result, nil
}

func (s *RollbackService) logSkipped(log zerolog.Logger, rec *domain.AuditLog, err error) {
	log.Warn().Err(err).
		Str("audit_id", rec.ID).
		Str("entity_type", string(rec.EntityType)).
		Str("entity_id", rec.EntityID).
		Str("action", string(rec.Action)).
		Msg("rollback skipped audit record")
}

// apply reverts one record in its own transaction
func (s *RollbackService) apply(ctx context.Context, rec *domain.AuditLog) (revertOutcome, error) {
	var outcome revertOutcome
	err := s.reg.Transaction(ctx, func(tx repository.Registry) error {
		var err error
		outcome, err = s.revert(ctx, tx, rec)
		return err
	})
	if err != nil {
		return revertNoop, err
	}
	return outcome, nil
}

// revert is the inverse of one audit record, for every entity kind:
// create -> remove, update/delete -> put oldValue back.
func (s *RollbackService) revert(ctx context.Context, tx repository.Registry, rec *domain.AuditLog) (revertOutcome, error) {
	store, err := tx.Store(rec.EntityType)
	if err != nil {
		return revertNoop, err
	}

	switch rec.Action {
	case domain.ActionCreate:
		current, err := store.Get(ctx, rec.EntityID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return revertNoop, nil
			}
			return revertNoop, err
		}
		removed, err := store.Remove(ctx, rec.EntityID)
		if err != nil || !removed {
			return revertNoop, err
		}
		if err := s.audit(ctx, tx, rec, domain.ActionDelete, current, nil); err != nil {
			return revertNoop, err
		}
		return revertDeleted, nil

	case domain.ActionUpdate, domain.ActionDelete:
		if len(rec.OldValue) == 0 {
			return revertNoop, fmt.Errorf("%s record %s has no prior snapshot", rec.Action, rec.ID)
		}
		prior, err := store.Decode(rec.OldValue)
		if err != nil {
			return revertNoop, err
		}
		if prior.GetID() != rec.EntityID {
			return revertNoop, fmt.Errorf("snapshot id %q does not match entity %q", prior.GetID(), rec.EntityID)
		}

		var existing domain.Entity
		if s.recordRollbacks {
			existing, err = store.Get(ctx, rec.EntityID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return revertNoop, err
			}
		}
		restored, err := store.Put(ctx, prior)
		if err != nil {
			return revertNoop, err
		}
		action := domain.ActionCreate
		if existing != nil {
			action = domain.ActionUpdate
		}
		if err := s.audit(ctx, tx, rec, action, existing, restored); err != nil {
			return revertNoop, err
		}
		return revertRestored, nil
	}
	return revertNoop, fmt.Errorf("unknown audit action %q", rec.Action)
}

// audit appends a source=rollback record when rollback auditing is enabled
func (s *RollbackService) audit(ctx context.Context, tx repository.Registry, reverted *domain.AuditLog, action domain.AuditAction, before, after domain.Entity) error {
	if !s.recordRollbacks {
		return nil
	}
	oldSnap, err := domain.Snapshot(before)
	if err != nil {
		return err
	}
	newSnap, err := domain.Snapshot(after)
	if err != nil {
		return err
	}
	_, err = tx.Ledger().Append(ctx, &domain.AuditLog{
		CampaignID: reverted.CampaignID,
		EntityType: reverted.EntityType,
		EntityID:   reverted.EntityID,
		Action:     action,
		OldValue:   oldSnap,
		NewValue:   newSnap,
		Source:     domain.SourceRollback,
		Timestamp:  s.now(),
		Metadata:   "revert of " + reverted.ID,
	})
	return err
}
