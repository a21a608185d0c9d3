package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Project struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Reference       string       `gorm:"size:128;not null;uniqueIndex" json:"reference"`
	Adresse         string       `gorm:"size:512" json:"adresse,omitempty"`
	ReferenceClient string       `gorm:"size:128" json:"referenceClient,omitempty"`
	SourcePDF       string       `gorm:"column:source_pdf;size:512" json:"sourcePdf,omitempty"`
	ClientID        *uuid.UUID   `gorm:"type:uuid;index" json:"clientId,omitempty"`
	Client          *Client      `gorm:"constraint:OnDelete:SET NULL" json:"client,omitempty"`
	Menuiseries     []Menuiserie `gorm:"constraint:OnDelete:CASCADE" json:"menuiseries,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func (p *Project) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Progress agrège les statuts des menuiseries d'un projet.
type Progress struct {
	Total      int `json:"total"`
	Imported   int `json:"imported"`
	InProgress int `json:"inProgress"`
	Validated  int `json:"validated"`
}

func ProgressOf(items []Menuiserie) Progress {
	progress := Progress{Total: len(items)}
	for _, item := range items {
		switch item.Status() {
		case StatusValidated:
			progress.Validated++
		case StatusInProgress:
			progress.InProgress++
		default:
			progress.Imported++
		}
	}
	return progress
}
