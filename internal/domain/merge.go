package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/damoang/campaign-chronicle/internal/common"
)

// immutableFields may be echoed back unchanged but never modified by an update
var immutableFields = map[string]bool{
	"id":         true,
	"campaignId": true,
}

// Merge overlays changes on top of current (shallow, by JSON field name) and
// returns a new entity of the same kind. current is never modified.
// Unknown fields and changes to id/campaignId are rejected.
func Merge(current Entity, changes map[string]any) (Entity, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", current.Kind(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", current.Kind(), err)
	}

	for key, value := range changes {
		existing, known := fields[key]
		if !known {
			return nil, common.NewValidationError(key, "unknown field")
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, common.NewValidationError(key, "cannot be encoded")
		}
		if immutableFields[key] {
			if !bytes.Equal(bytes.TrimSpace(existing), encoded) {
				return nil, common.NewValidationError(key, "is immutable")
			}
			continue
		}
		fields[key] = encoded
	}

	merged, err := NewEntity(current.Kind())
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", current.Kind(), err)
	}
	if err := json.Unmarshal(data, merged); err != nil {
		return nil, common.NewValidationError("", "malformed field value: "+err.Error())
	}
	return merged, nil
}

// Snapshot serialises an entity as stored in AuditLog.OldValue/NewValue
func Snapshot(e Entity) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s %s: %w", e.Kind(), e.GetID(), err)
	}
	return data, nil
}
