package domain

import (
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
	"gorm.io/datatypes"
)

// AuditAction is the kind of mutation a record describes
type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
)

// AuditSource records where a mutation came from
type AuditSource string

const (
	SourceManual       AuditSource = "manual"
	SourceImport       AuditSource = "import"
	SourceAIProcessing AuditSource = "ai-processing"
	// SourceRollback marks records written by the rollback engine when rollback auditing is on
	SourceRollback AuditSource = "rollback"
)

// TimestampPrecision is the resolution of ledger timestamps (datetime(6) on MySQL).
// Two records of one ledger never share a timestamp.
const TimestampPrecision = time.Microsecond

// AuditLog is one immutable ledger record.
// OldValue is null for create, NewValue is null for delete; both are full snapshots.
type AuditLog struct {
	Seq           uint64         `gorm:"column:seq;primaryKey;autoIncrement" json:"-"`
	ID            string         `gorm:"column:id;size:40;uniqueIndex;not null" json:"id"`
	CampaignID    string         `gorm:"column:campaign_id;size:36;index;not null" json:"campaignId"`
	EntityType    EntityType     `gorm:"column:entity_type;size:20;not null" json:"entityType"`
	EntityID      string         `gorm:"column:entity_id;size:36;index;not null" json:"entityId"`
	Action        AuditAction    `gorm:"column:action;size:10;not null" json:"action"`
	OldValue      datatypes.JSON `gorm:"column:old_value" json:"oldValue"`
	NewValue      datatypes.JSON `gorm:"column:new_value" json:"newValue"`
	Source        AuditSource    `gorm:"column:source;size:20;not null" json:"source"`
	ImportBatchID string         `gorm:"column:import_batch_id;size:40;index" json:"importBatchId,omitempty"`
	Timestamp     time.Time      `gorm:"column:recorded_at;precision:6;index;not null" json:"timestamp"`
	Metadata      string         `gorm:"column:metadata;type:text" json:"metadata,omitempty"`
}

func (AuditLog) TableName() string { return "audit_log" }

// Validate checks that a record is well-formed before it is appended
func (a *AuditLog) Validate() error {
	if a.CampaignID == "" {
		return common.NewValidationError("campaignId", "is required")
	}
	if !a.EntityType.Valid() {
		return common.NewValidationError("entityType", "unknown entity type")
	}
	if a.EntityID == "" {
		return common.NewValidationError("entityId", "is required")
	}
	switch a.Action {
	case ActionCreate:
		if len(a.NewValue) == 0 {
			return common.NewValidationError("newValue", "is required for create")
		}
	case ActionUpdate:
		if len(a.OldValue) == 0 || len(a.NewValue) == 0 {
			return common.NewValidationError("oldValue", "update needs both snapshots")
		}
	case ActionDelete:
		if len(a.OldValue) == 0 {
			return common.NewValidationError("oldValue", "is required for delete")
		}
	default:
		return common.NewValidationError("action", "must be create, update or delete")
	}
	if (a.Source == SourceImport) != (a.ImportBatchID != "") {
		return common.NewValidationError("importBatchId", "is required for import records only")
	}
	return nil
}

// Clone copies the record including its snapshots
func (a *AuditLog) Clone() *AuditLog {
	cp := *a
	if a.OldValue != nil {
		cp.OldValue = append(datatypes.JSON(nil), a.OldValue...)
	}
	if a.NewValue != nil {
		cp.NewValue = append(datatypes.JSON(nil), a.NewValue...)
	}
	return &cp
}

// MutationContext carries provenance for a gateway write
type MutationContext struct {
	Source        AuditSource
	ImportBatchID string
	Metadata      string
}

// Manual is the context for direct API calls
func Manual() MutationContext {
	return MutationContext{Source: SourceManual}
}

// Import is the context for one bulk-import batch
func Import(batchID, metadata string) MutationContext {
	return MutationContext{Source: SourceImport, ImportBatchID: batchID, Metadata: metadata}
}

// Validate rejects unknown sources and batch ids outside imports.
// SourceRollback is reserved for the rollback engine.
func (m MutationContext) Validate() error {
	switch m.Source {
	case SourceManual, SourceAIProcessing:
		if m.ImportBatchID != "" {
			return common.NewValidationError("importBatchId", "only allowed for import source")
		}
	case SourceImport:
		if m.ImportBatchID == "" {
			return common.NewValidationError("importBatchId", "is required for import source")
		}
	default:
		return common.NewValidationError("source", "must be manual, import or ai-processing")
	}
	return nil
}
