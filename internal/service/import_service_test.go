package service

import (
	"context"
	"errors"
	"testing"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, content string, opts ExtractOptions) (*ExtractedContent, error) {
	args := m.Called(ctx, content, opts)
	if v := args.Get(0); v != nil {
		return v.(*ExtractedContent), args.Error(1)
	}
	return nil, args.Error(1)
}

func sampleExtraction() *ExtractedContent {
	return &ExtractedContent{
		Characters: []ExtractedCharacter{
			{Name: "Gundren Rockseeker", Race: "Dwarf", IsNPC: true, Biography: "Hired the party."},
			{Name: "Tordek", CharacterClass: "Fighter", IsNPC: false},
		},
		Events: []ExtractedEvent{
			{Title: "Goblin ambush", EventType: "combat", LinkedCharacters: []string{"tordek", "Nobody"}},
		},
		Plots: []ExtractedPlot{
			{Title: "Find Wave Echo Cave", PlotType: "main", LinkedCharacters: []string{"Gundren Rockseeker"}},
		},
		Lore: []ExtractedLore{
			{Title: "Phandalin", Content: "Frontier town", Category: "location", Tags: []string{"town", "town"}},
		},
	}
}

func TestImportDocument_CreatesBatch(t *testing.T) {
	eachBackend(t, func(t *testing.T, env *testEnv) {
		ctx := context.Background()
		camp := env.campaign(t)
		ext := &mockExtractor{}
		ext.On("Extract", mock.Anything, "notes", AllExtractOptions()).Return(sampleExtraction(), nil)
		svc := NewImportService(env.gateway, env.rollback, ext)

		result, err := svc.ImportDocument(ctx, camp.ID, "session-1.md", "notes", AllExtractOptions())
		require.NoError(t, err)
		assert.Equal(t, ImportCounts{Characters: 2, Events: 1, Plots: 1, Lore: 1}, result.Created)
		assert.NotEmpty(t, result.ImportBatchID)
		assert.True(t, env.exists(t, domain.EntityDocument, result.DocumentID))

		batch, err := env.reg.Ledger().ListByImportBatch(ctx, result.ImportBatchID)
		require.NoError(t, err)
		require.Len(t, batch, 5)
		for _, rec := range batch {
			assert.Equal(t, domain.SourceImport, rec.Source)
			assert.Equal(t, "session-1.md", rec.Metadata)
		}
		assert.Equal(t, domain.EntityCharacter, batch[0].EntityType)
		assert.Equal(t, domain.EntityLore, batch[4].EntityType)

		// the document itself is a manual write, outside the batch
		docLogs, err := env.reg.Ledger().ListByEntity(ctx, result.DocumentID)
		require.NoError(t, err)
		require.Len(t, docLogs, 1)
		assert.Equal(t, domain.SourceManual, docLogs[0].Source)

		chars, err := env.gateway.List(ctx, domain.EntityCharacter, camp.ID)
		require.NoError(t, err)
		ids := map[string]string{}
		for _, c := range chars {
			ch := c.(*domain.Character)
			ids[ch.Name] = ch.ID
			if ch.Name == "Gundren Rockseeker" {
				assert.False(t, ch.IsPlayerCharacter)
				assert.Equal(t, "Dwarf\n\nHired the party.", ch.Bio)
			}
		}

		events, err := env.gateway.List(ctx, domain.EntityTimelineEvent, camp.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, domain.Links{ids["Tordek"]}, events[0].(*domain.TimelineEvent).LinkedCharacters)

		plots, err := env.gateway.List(ctx, domain.EntityPlot, camp.ID)
		require.NoError(t, err)
		require.Len(t, plots, 1)
		assert.Equal(t, "Find Wave Echo Cave", plots[0].(*domain.Plot).Name)
		assert.Equal(t, domain.Links{ids["Gundren Rockseeker"]}, plots[0].(*domain.Plot).LinkedCharacters)

		lore, err := env.gateway.List(ctx, domain.EntityLore, camp.ID)
		require.NoError(t, err)
		require.Len(t, lore, 1)
		assert.Equal(t, domain.Links{"town"}, lore[0].(*domain.LoreEntry).Tags)

		// the whole import can be undone as one batch
		rb, err := env.rollback.RollbackImportBatch(ctx, result.ImportBatchID)
		require.NoError(t, err)
		assert.Equal(t, 5, rb.DeletedCount)
		ext.AssertExpectations(t)
	})
}

func TestImportDocument_RespectsOptions(t *testing.T) {
	eachBackend(t, func(t *testing.T, env *testEnv) {
		camp := env.campaign(t)
		opts := ExtractOptions{ExtractLore: true}
		ext := &mockExtractor{}
		ext.On("Extract", mock.Anything, "notes", opts).Return(sampleExtraction(), nil)
		svc := NewImportService(env.gateway, env.rollback, ext)

		result, err := svc.ImportDocument(context.Background(), camp.ID, "lore.md", "notes", opts)
		require.NoError(t, err)
		assert.Equal(t, ImportCounts{Lore: 1}, result.Created)
		assert.Empty(t, result.Extracted.Characters)
	})
}

func TestImportDocument_NothingExtracted(t *testing.T) {
	eachBackend(t, func(t *testing.T, env *testEnv) {
		ctx := context.Background()
		camp := env.campaign(t)
		ext := &mockExtractor{}
		ext.On("Extract", mock.Anything, "blank page", AllExtractOptions()).Return(nil, nil)
		svc := NewImportService(env.gateway, env.rollback, ext)

		result, err := svc.ImportDocument(ctx, camp.ID, "blank.txt", "blank page", AllExtractOptions())
		require.NoError(t, err)
		assert.Equal(t, ImportCounts{}, result.Created)
		require.NotNil(t, result.Extracted)
		assert.True(t, env.exists(t, domain.EntityDocument, result.DocumentID))

		batch, err := env.reg.Ledger().ListByImportBatch(ctx, result.ImportBatchID)
		require.NoError(t, err)
		assert.Empty(t, batch)
		ext.AssertExpectations(t)
	})
}

func TestImportDocument_FailureRollsBackPartialBatch(t *testing.T) {
	eachBackend(t, func(t *testing.T, env *testEnv) {
		ctx := context.Background()
		camp := env.campaign(t)
		bad := sampleExtraction()
		bad.Plots = append(bad.Plots, ExtractedPlot{Title: "   "})
		ext := &mockExtractor{}
		ext.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(bad, nil)
		svc := NewImportService(env.gateway, env.rollback, ext)

		_, err := svc.ImportDocument(ctx, camp.ID, "broken.md", "notes", AllExtractOptions())
		assert.True(t, errors.Is(err, common.ErrInvalidInput))

		for _, kind := range []domain.EntityType{domain.EntityCharacter, domain.EntityTimelineEvent, domain.EntityPlot, domain.EntityLore} {
			list, err := env.gateway.List(ctx, kind, camp.ID)
			require.NoError(t, err)
			assert.Empty(t, list, "kind %s", kind)
		}
		docs, err := env.gateway.List(ctx, domain.EntityDocument, camp.ID)
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})
}

func TestImportDocument_Errors(t *testing.T) {
	eachBackend(t, func(t *testing.T, env *testEnv) {
		ctx := context.Background()
		camp := env.campaign(t)

		disabled := NewImportService(env.gateway, env.rollback, nil)
		_, err := disabled.ImportDocument(ctx, camp.ID, "a.md", "x", AllExtractOptions())
		assert.True(t, errors.Is(err, common.ErrExtractorDisabled))

		_, err = disabled.ImportDocument(ctx, "missing-campaign", "a.md", "x", AllExtractOptions())
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})
}

func TestCharacterBio(t *testing.T) {
	tests := []struct {
		name string
		in   ExtractedCharacter
		want string
	}{
		{"biography only", ExtractedCharacter{Biography: "b"}, "b"},
		{"traits only", ExtractedCharacter{Race: "Elf", CharacterClass: "Wizard"}, "Elf, Wizard"},
		{"both", ExtractedCharacter{Alignment: "CN", Biography: "b"}, "CN\n\nb"},
		{"empty", ExtractedCharacter{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, characterBio(tt.in))
		})
	}
}
