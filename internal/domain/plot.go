package domain

import (
	"slices"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
)

// Plot is a questline, subplot or side quest
type Plot struct {
	ID               string `gorm:"column:id;primaryKey;size:36" json:"id"`
	CampaignID       string `gorm:"column:campaign_id;size:36;index;not null" json:"campaignId"`
	Name             string `gorm:"column:name;type:text;not null" json:"name"`
	Description      string `gorm:"column:description;type:text" json:"description"`
	PlotType         string `gorm:"column:plot_type;size:50" json:"plotType"` // main, subplot, side-quest
	LinkedCharacters Links  `gorm:"column:linked_characters" json:"linkedCharacters"`
	LinkedEvents     Links  `gorm:"column:linked_events" json:"linkedEvents"`
}

func (Plot) TableName() string { return "plots" }

func (p *Plot) Kind() EntityType      { return EntityPlot }
func (p *Plot) GetID() string         { return p.ID }
func (p *Plot) SetID(id string)       { p.ID = id }
func (p *Plot) GetCampaignID() string { return p.CampaignID }

func (p *Plot) ApplyDefaults(_ time.Time) {
	p.LinkedCharacters = common.NormalizeLinks(p.LinkedCharacters)
	p.LinkedEvents = common.NormalizeLinks(p.LinkedEvents)
}

func (p *Plot) Validate() error {
	if err := requireText("campaignId", p.CampaignID); err != nil {
		return err
	}
	if err := requireText("name", p.Name); err != nil {
		return err
	}
	if err := common.ValidateLinks("linkedCharacters", p.LinkedCharacters); err != nil {
		return err
	}
	return common.ValidateLinks("linkedEvents", p.LinkedEvents)
}

func (p *Plot) Clone() *Plot {
	cp := *p
	cp.LinkedCharacters = slices.Clone(p.LinkedCharacters)
	cp.LinkedEvents = slices.Clone(p.LinkedEvents)
	return &cp
}
