package domain

import "time"

// Document is an uploaded campaign note used as import source
type Document struct {
	ID         string `gorm:"column:id;primaryKey;size:36" json:"id"`
	CampaignID string `gorm:"column:campaign_id;size:36;index;not null" json:"campaignId"`
	Filename   string `gorm:"column:filename;size:255;not null" json:"filename"`
	Content    string `gorm:"column:content;type:mediumtext" json:"content"`
}

func (Document) TableName() string { return "documents" }

func (d *Document) Kind() EntityType        { return EntityDocument }
func (d *Document) GetID() string           { return d.ID }
func (d *Document) SetID(id string)         { d.ID = id }
func (d *Document) GetCampaignID() string   { return d.CampaignID }
func (d *Document) ApplyDefaults(time.Time) {}

func (d *Document) Validate() error {
	if err := requireText("campaignId", d.CampaignID); err != nil {
		return err
	}
	return requireText("filename", d.Filename)
}

func (d *Document) Clone() *Document {
	cp := *d
	return &cp
}
