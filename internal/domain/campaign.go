package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Links is an opaque list of identifiers (or tags) stored as a JSON array
type Links = datatypes.JSONSlice[string]

// Campaign is the root of every other entity
type Campaign struct {
	ID             string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name           string    `gorm:"column:name;type:text;not null" json:"name"`
	Description    string    `gorm:"column:description;type:text" json:"description"`
	CurrentSession string    `gorm:"column:current_session;size:20" json:"currentSession"`
	PartyLevel     string    `gorm:"column:party_level;size:20" json:"partyLevel"`
	LastPlayed     time.Time `gorm:"column:last_played" json:"lastPlayed"`
}

func (Campaign) TableName() string { return "campaigns" }

func (c *Campaign) Kind() EntityType      { return EntityCampaign }
func (c *Campaign) GetID() string         { return c.ID }
func (c *Campaign) SetID(id string)       { c.ID = id }
func (c *Campaign) GetCampaignID() string { return c.ID }

// ApplyDefaults session and level start at "1"
func (c *Campaign) ApplyDefaults(now time.Time) {
	if c.CurrentSession == "" {
		c.CurrentSession = "1"
	}
	if c.PartyLevel == "" {
		c.PartyLevel = "1"
	}
	if c.LastPlayed.IsZero() {
		c.LastPlayed = now
	}
}

func (c *Campaign) Validate() error {
	return requireText("name", c.Name)
}

func (c *Campaign) Clone() *Campaign {
	cp := *c
	return &cp
}
