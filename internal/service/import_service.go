package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/internal/domain"
	"github.com/damoang/campaign-chronicle/internal/repository"
	pkglogger "github.com/damoang/campaign-chronicle/pkg/logger"
)

// ImportCounts is how many entities of each kind an import created
type ImportCounts struct {
	Characters int `json:"characters"`
	Events     int `json:"events"`
	Plots      int `json:"plots"`
	Lore       int `json:"lore"`
}

// ImportResult describes one processed document
type ImportResult struct {
	DocumentID    string            `json:"documentId"`
	ImportBatchID string            `json:"importBatchId"`
	Filename      string            `json:"filename"`
	Created       ImportCounts      `json:"created"`
	Extracted     *ExtractedContent `json:"extracted"`
}

// ImportService stores an uploaded document and turns its extracted content into
// entities, all tagged with one import batch id.
type ImportService struct {
	gateway   *Gateway
	rollback  *RollbackService
	extractor Extractor
}

// NewImportService creates a new ImportService
func NewImportService(gateway *Gateway, rollback *RollbackService, extractor Extractor) *ImportService {
	if extractor == nil {
		extractor = DisabledExtractor{}
	}
	return &ImportService{gateway: gateway, rollback: rollback, extractor: extractor}
}

// ImportDocument stores the document, extracts candidates and creates them as one batch.
// When a create fails the entities created so far are rolled back.
func (s *ImportService) ImportDocument(ctx context.Context, campaignID, filename, content string, opts ExtractOptions) (*ImportResult, error) {
	if _, err := s.gateway.Get(ctx, domain.EntityCampaign, campaignID); err != nil {
		return nil, err
	}

	doc, err := s.gateway.Create(ctx, &domain.Document{
		CampaignID: campaignID,
		Filename:   filename,
		Content:    content,
	}, domain.MutationContext{Source: domain.SourceManual, Metadata: filename})
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	extracted, err := s.extractor.Extract(ctx, content, opts)
	if err != nil {
		importsTotal.WithLabelValues("extract_failed").Inc()
		return nil, err
	}
	if extracted == nil {
		extracted = &ExtractedContent{}
	}
	extracted.filter(opts)

	batchID := repository.NewEntityID()
	result := &ImportResult{
		DocumentID:    doc.GetID(),
		ImportBatchID: batchID,
		Filename:      filename,
		Extracted:     extracted,
	}
	log := pkglogger.WithCampaignID(campaignID).With().
		Str("import_batch_id", batchID).
		Str("filename", filename).
		Logger()

	if err := s.createAll(ctx, campaignID, batchID, filename, extracted, &result.Created); err != nil {
		log.Error().Err(err).Msg("import failed, rolling back partial batch")
		if _, rbErr := s.rollback.RollbackImportBatch(context.WithoutCancel(ctx), batchID); rbErr != nil {
			log.Error().Err(rbErr).Msg("rollback of partial import failed")
		}
		importsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	importsTotal.WithLabelValues("success").Inc()
	log.Info().
		Int("characters", result.Created.Characters).
		Int("events", result.Created.Events).
		Int("plots", result.Created.Plots).
		Int("lore", result.Created.Lore).
		Msg("document imported")
	return result, nil
}

func (s *ImportService) createAll(ctx context.Context, campaignID, batchID, filename string, ex *ExtractedContent, counts *ImportCounts) error {
	mc := domain.Import(batchID, filename)

	// characters first so events and plots can link to them by name
	for _, c := range ex.Characters {
		char := &domain.Character{
			CampaignID:        campaignID,
			Name:              c.Name,
			Bio:               characterBio(c),
			IsPlayerCharacter: !c.IsNPC,
		}
		if _, err := s.gateway.Create(ctx, char, mc); err != nil {
			return fmt.Errorf("create character %q: %w", c.Name, err)
		}
		counts.Characters++
	}

	names, err := s.characterIndex(ctx, campaignID)
	if err != nil {
		return err
	}

	for _, e := range ex.Events {
		event := &domain.TimelineEvent{
			CampaignID:       campaignID,
			Title:            e.Title,
			Description:      e.Description,
			GameDate:         e.GameDate,
			EventType:        e.EventType,
			LinkedCharacters: s.resolveNames(names, e.LinkedCharacters, batchID),
		}
		if event.EventType == "" {
			event.EventType = "other"
		}
		if _, err := s.gateway.Create(ctx, event, mc); err != nil {
			return fmt.Errorf("create event %q: %w", e.Title, err)
		}
		counts.Events++
	}

	for _, p := range ex.Plots {
		plot := &domain.Plot{
			CampaignID:       campaignID,
			Name:             p.Title,
			Description:      p.Description,
			PlotType:         p.PlotType,
			LinkedCharacters: s.resolveNames(names, p.LinkedCharacters, batchID),
		}
		if _, err := s.gateway.Create(ctx, plot, mc); err != nil {
			return fmt.Errorf("create plot %q: %w", p.Title, err)
		}
		counts.Plots++
	}

	for _, l := range ex.Lore {
		lore := &domain.LoreEntry{
			CampaignID: campaignID,
			Title:      l.Title,
			Content:    l.Content,
			Category:   l.Category,
			Tags:       domain.Links(l.Tags),
		}
		if _, err := s.gateway.Create(ctx, lore, mc); err != nil {
			return fmt.Errorf("create lore %q: %w", l.Title, err)
		}
		counts.Lore++
	}
	return nil
}

// characterIndex maps lower-cased character names of the campaign to ids
func (s *ImportService) characterIndex(ctx context.Context, campaignID string) (map[string]string, error) {
	chars, err := s.gateway.List(ctx, domain.EntityCharacter, campaignID)
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(chars))
	for _, e := range chars {
		c, ok := e.(*domain.Character)
		if !ok {
			return nil, fmt.Errorf("%w: %T in character store", common.ErrTypeMismatch, e)
		}
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if _, dup := index[key]; !dup {
			index[key] = c.ID
		}
	}
	return index, nil
}

// resolveNames keeps the names that match a known character; unknown ones are dropped
func (s *ImportService) resolveNames(index map[string]string, names []string, batchID string) domain.Links {
	ids := make(domain.Links, 0, len(names))
	for _, name := range names {
		id, ok := index[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			pkglogger.GetLogger().Debug().
				Str("import_batch_id", batchID).
				Str("name", name).
				Msg("linked character not found, dropping link")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func characterBio(c ExtractedCharacter) string {
	var traits []string
	for _, t := range []string{c.Race, c.CharacterClass, c.Alignment} {
		if t = strings.TrimSpace(t); t != "" {
			traits = append(traits, t)
		}
	}
	if len(traits) == 0 {
		return c.Biography
	}
	if c.Biography == "" {
		return strings.Join(traits, ", ")
	}
	return strings.Join(traits, ", ") + "\n\n" + c.Biography
}
