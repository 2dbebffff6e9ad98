package domain

import (
	"slices"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
)

// TimelineEvent is a point on the campaign timeline
type TimelineEvent struct {
	ID               string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	CampaignID       string    `gorm:"column:campaign_id;size:36;index;not null" json:"campaignId"`
	Title            string    `gorm:"column:title;type:text;not null" json:"title"`
	Description      string    `gorm:"column:description;type:text" json:"description"`
	GameDate         string    `gorm:"column:game_date;size:100" json:"gameDate"`
	RealDate         time.Time `gorm:"column:real_date" json:"realDate"`
	EventType        string    `gorm:"column:event_type;size:50;not null" json:"eventType"` // combat, roleplay, discovery, travel, rest, other
	LinkedCharacters Links     `gorm:"column:linked_characters" json:"linkedCharacters"`
	LinkedPlots      Links     `gorm:"column:linked_plots" json:"linkedPlots"`
	LinkedLocations  Links     `gorm:"column:linked_locations" json:"linkedLocations"`
}

func (TimelineEvent) TableName() string { return "timeline_events" }

func (e *TimelineEvent) Kind() EntityType      { return EntityTimelineEvent }
func (e *TimelineEvent) GetID() string         { return e.ID }
func (e *TimelineEvent) SetID(id string)       { e.ID = id }
func (e *TimelineEvent) GetCampaignID() string { return e.CampaignID }

func (e *TimelineEvent) ApplyDefaults(now time.Time) {
	if e.RealDate.IsZero() {
		e.RealDate = now
	}
	e.LinkedCharacters = common.NormalizeLinks(e.LinkedCharacters)
	e.LinkedPlots = common.NormalizeLinks(e.LinkedPlots)
	e.LinkedLocations = common.NormalizeLinks(e.LinkedLocations)
}

func (e *TimelineEvent) Validate() error {
	if err := requireText("campaignId", e.CampaignID); err != nil {
		return err
	}
	if err := requireText("title", e.Title); err != nil {
		return err
	}
	if err := requireText("eventType", e.EventType); err != nil {
		return err
	}
	if err := common.ValidateLinks("linkedCharacters", e.LinkedCharacters); err != nil {
		return err
	}
	if err := common.ValidateLinks("linkedPlots", e.LinkedPlots); err != nil {
		return err
	}
	return common.ValidateLinks("linkedLocations", e.LinkedLocations)
}

func (e *TimelineEvent) Clone() *TimelineEvent {
	cp := *e
	cp.LinkedCharacters = slices.Clone(e.LinkedCharacters)
	cp.LinkedPlots = slices.Clone(e.LinkedPlots)
	cp.LinkedLocations = slices.Clone(e.LinkedLocations)
	return &cp
}
