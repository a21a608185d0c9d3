package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusImported   Status = "IMPORTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusValidated  Status = "VALIDATED"
)

type Menuiserie struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"projectId"`
	Repere       string            `gorm:"size:128" json:"repere"`
	Intitule     string            `gorm:"size:255" json:"intitule"`
	OriginalData datatypes.JSONMap `gorm:"not null" json:"originalData"`
	ModifiedData datatypes.JSONMap `json:"modifiedData"`
	Validated    bool              `gorm:"not null;default:false" json:"validated"`
	Ordre        int               `gorm:"not null;default:0;index" json:"ordre"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (m *Menuiserie) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.OriginalData == nil {
		m.OriginalData = datatypes.JSONMap{}
	}
	return nil
}

// AfterFind turns the json.Number values left by JSONMap.Scan back into float64,
// so stored data reads the same as data built in memory.
func (m *Menuiserie) AfterFind(_ *gorm.DB) error {
	decodeNumbers(m.OriginalData)
	decodeNumbers(m.ModifiedData)
	return nil
}

func decodeNumbers(data map[string]any) {
	for key, value := range data {
		switch v := value.(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				data[key] = f
			}
		case map[string]any:
			decodeNumbers(v)
		}
	}
}

func (m Menuiserie) Status() Status {
	return StatusFor(m.ModifiedData, m.Validated)
}

func (m Menuiserie) HasModifications() bool {
	return len(m.ModifiedData) > 0
}

// StatusFor reports VALIDATED whenever the flag is set; otherwise the status
// depends on whether modifiedData holds anything.
func StatusFor(modifiedData map[string]any, validated bool) Status {
	if validated {
		return StatusValidated
	}
	if len(modifiedData) == 0 {
		return StatusImported
	}
	return StatusInProgress
}

// Value returns the modified value for key when present, otherwise the original one.
func (m Menuiserie) Value(key string) (any, bool) {
	if v, ok := m.ModifiedData[key]; ok && !isBlank(v) {
		return v, true
	}
	if v, ok := m.OriginalData[key]; ok && !isBlank(v) {
		return v, true
	}
	return nil, false
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}
