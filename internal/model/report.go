package model

import (
	"time"

	"github.com/julienbutty/prometrage-sub001/internal/ecart"
	"github.com/julienbutty/prometrage-sub001/internal/menuiserie"
)

type ItemReport struct {
	Item   Menuiserie
	Type   menuiserie.ParsedType
	Status Status
	Ecarts map[string]ecart.Ecart
	Worst  ecart.Severity
}

type ProjectReport struct {
	Project     Project
	Progress    Progress
	Items       []ItemReport
	GeneratedAt time.Time
}
