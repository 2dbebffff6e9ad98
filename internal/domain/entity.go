package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
)

// EntityType tags which store a record belongs to
type EntityType string

const (
	EntityCampaign      EntityType = "campaign"
	EntityTimelineEvent EntityType = "event"
	EntityCharacter     EntityType = "character"
	EntityPlot          EntityType = "plot"
	EntityLore          EntityType = "lore"
	EntityDocument      EntityType = "document"
)

// EntityTypes lists every entity kind in a stable order
var EntityTypes = []EntityType{
	EntityCampaign,
	EntityTimelineEvent,
	EntityCharacter,
	EntityPlot,
	EntityLore,
	EntityDocument,
}

// Valid reports whether t is one of the known kinds
func (t EntityType) Valid() bool {
	for _, k := range EntityTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Entity is implemented by every campaign record kept in an entity store.
// Values are replaced wholesale on update; stores keep their own copies.
type Entity interface {
	Kind() EntityType
	GetID() string
	SetID(id string)
	// GetCampaignID returns the owning campaign. A Campaign returns its own id.
	GetCampaignID() string
	// ApplyDefaults fills server-side defaults (timestamps, counters, empty lists).
	ApplyDefaults(now time.Time)
	Validate() error
}

// Record is the constraint used by the generic store implementations:
// a pointer entity type that can copy itself.
type Record[T any] interface {
	Entity
	Clone() T
}

// NewEntity returns an empty entity of the given kind
func NewEntity(kind EntityType) (Entity, error) {
	switch kind {
	case EntityCampaign:
		return &Campaign{}, nil
	case EntityTimelineEvent:
		return &TimelineEvent{}, nil
	case EntityCharacter:
		return &Character{}, nil
	case EntityPlot:
		return &Plot{}, nil
	case EntityLore:
		return &LoreEntry{}, nil
	case EntityDocument:
		return &Document{}, nil
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnknownEntityType, kind)
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return common.NewValidationError(field, "is required")
	}
	return nil
}
