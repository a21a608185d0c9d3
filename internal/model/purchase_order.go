package model

import (
	"time"

	"github.com/julienbutty/prometrage-sub001/internal/ecart"
	"github.com/julienbutty/prometrage-sub001/internal/menuiserie"
)

type Characteristic struct {
	Label string
	Value string
}

type Habillage struct {
	Haut   string
	Bas    string
	Gauche string
	Droite string
}

type PurchaseOrderDocument struct {
	Project         Project
	Item            Menuiserie
	Type            menuiserie.ParsedType
	Ecarts          map[string]ecart.Ecart
	Direction       string
	HabillageInt    Habillage
	HabillageExt    Habillage
	Characteristics []Characteristic
	Observations    string
	Date            time.Time
}
