package domain

import (
	"slices"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
)

// LoreEntry is a piece of world-building (location, history, religion ...)
type LoreEntry struct {
	ID         string `gorm:"column:id;primaryKey;size:36" json:"id"`
	CampaignID string `gorm:"column:campaign_id;size:36;index;not null" json:"campaignId"`
	Title      string `gorm:"column:title;type:text;not null" json:"title"`
	Content    string `gorm:"column:content;type:text" json:"content"`
	Category   string `gorm:"column:category;size:50" json:"category"`
	IsSecret   bool   `gorm:"column:is_secret;default:false" json:"isSecret"`
	Tags       Links  `gorm:"column:tags" json:"tags"`
}

func (LoreEntry) TableName() string { return "lore_entries" }

func (l *LoreEntry) Kind() EntityType      { return EntityLore }
func (l *LoreEntry) GetID() string         { return l.ID }
func (l *LoreEntry) SetID(id string)       { l.ID = id }
func (l *LoreEntry) GetCampaignID() string { return l.CampaignID }

func (l *LoreEntry) ApplyDefaults(_ time.Time) {
	l.Tags = common.NormalizeLinks(l.Tags)
}

func (l *LoreEntry) Validate() error {
	if err := requireText("campaignId", l.CampaignID); err != nil {
		return err
	}
	if err := requireText("title", l.Title); err != nil {
		return err
	}
	return common.ValidateLinks("tags", l.Tags)
}

func (l *LoreEntry) Clone() *LoreEntry {
	cp := *l
	cp.Tags = slices.Clone(l.Tags)
	return &cp
}
