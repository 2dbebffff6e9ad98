package domain

import (
	"slices"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
)

// Character is a player character or NPC
type Character struct {
	ID                string `gorm:"column:id;primaryKey;size:36" json:"id"`
	CampaignID        string `gorm:"column:campaign_id;size:36;index;not null" json:"campaignId"`
	Name              string `gorm:"column:name;type:text;not null" json:"name"`
	Bio               string `gorm:"column:bio;type:text" json:"bio"`
	IsPlayerCharacter bool   `gorm:"column:is_player_character;default:false" json:"isPlayerCharacter"`
	LinkedEvents      Links  `gorm:"column:linked_events" json:"linkedEvents"`
	LinkedPlots       Links  `gorm:"column:linked_plots" json:"linkedPlots"`
}

func (Character) TableName() string { return "characters" }

func (c *Character) Kind() EntityType      { return EntityCharacter }
func (c *Character) GetID() string         { return c.ID }
func (c *Character) SetID(id string)       { c.ID = id }
func (c *Character) GetCampaignID() string { return c.CampaignID }

func (c *Character) ApplyDefaults(_ time.Time) {
	c.LinkedEvents = common.NormalizeLinks(c.LinkedEvents)
	c.LinkedPlots = common.NormalizeLinks(c.LinkedPlots)
}

func (c *Character) Validate() error {
	if err := requireText("campaignId", c.CampaignID); err != nil {
		return err
	}
	if err := requireText("name", c.Name); err != nil {
		return err
	}
	if err := common.ValidateLinks("linkedEvents", c.LinkedEvents); err != nil {
		return err
	}
	return common.ValidateLinks("linkedPlots", c.LinkedPlots)
}

func (c *Character) Clone() *Character {
	cp := *c
	cp.LinkedEvents = slices.Clone(c.LinkedEvents)
	cp.LinkedPlots = slices.Clone(c.LinkedPlots)
	return &cp
}
