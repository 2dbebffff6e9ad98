package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_OverlaysAndRetains(t *testing.T) {
	current := &Character{
		ID:           "c1",
		CampaignID:   "camp",
		Name:         "Gundren",
		Bio:          "",
		LinkedEvents: Links{"e1"},
	}

	merged, err := Merge(current, map[string]any{"bio": "A dwarf merchant"})
	require.NoError(t, err)

	ch, ok := merged.(*Character)
	require.True(t, ok)
	assert.Equal(t, "Gundren", ch.Name)
	assert.Equal(t, "A dwarf merchant", ch.Bio)
	assert.Equal(t, Links{"e1"}, ch.LinkedEvents)

	// current is untouched
	assert.Equal(t, "", current.Bio)
}

func TestMerge_UnknownField(t *testing.T) {
	_, err := Merge(&Plot{ID: "p1", CampaignID: "camp", Name: "x"}, map[string]any{"status": "active"})
	var vErr *common.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "status", vErr.Field)
}

func TestMerge_ImmutableFields(t *testing.T) {
	current := &LoreEntry{ID: "l1", CampaignID: "camp", Title: "Neverwinter"}

	_, err := Merge(current, map[string]any{"id": "other"})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = Merge(current, map[string]any{"campaignId": "other"})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	// echoing the same value is allowed
	merged, err := Merge(current, map[string]any{"id": "l1", "category": "location"})
	require.NoError(t, err)
	assert.Equal(t, "location", merged.(*LoreEntry).Category)
}

func TestMerge_MalformedValue(t *testing.T) {
	_, err := Merge(&Character{ID: "c1", CampaignID: "camp", Name: "x"}, map[string]any{"isPlayerCharacter": "yes"})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ev := &TimelineEvent{ID: "e1", CampaignID: "camp", Title: "Ambush", EventType: "combat", LinkedPlots: Links{"p1"}}
	data, err := Snapshot(ev)
	require.NoError(t, err)

	var back TimelineEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ev.Title, back.Title)
	assert.Equal(t, ev.LinkedPlots, back.LinkedPlots)
}
