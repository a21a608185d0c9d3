// Package ecart computes deviations between AI-extracted dimensions and the
// values measured on site.
package ecart

import (
	"math"

	"github.com/julienbutty/prometrage-sub001/internal/menuiserie"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

const (
	FieldLargeur       = "largeur"
	FieldHauteur       = "hauteur"
	FieldHauteurAllege = "hauteurAllege"
)

// Fields lists the dimension fields evaluated for deviations, in display order.
var Fields = []string{FieldLargeur, FieldHauteur, FieldHauteurAllege}

var severityRank = map[Severity]int{SeverityLow: 0, SeverityMedium: 1, SeverityHigh: 2}

type Ecart struct {
	Original   float64  `json:"original"`
	Modified   float64  `json:"modified"`
	Difference float64  `json:"difference"`
	Percentage float64  `json:"percentage"`
	Severity   Severity `json:"severity"`
}

// Calculate returns false when original is not strictly positive: no percentage
// can be derived and the field is skipped.
func Calculate(original, modified float64) (Ecart, bool) {
	if !(original > 0) || math.IsNaN(modified) || math.IsInf(modified, 0) || math.IsInf(original, 0) {
		return Ecart{}, false
	}
	difference := modified - original
	percentage := round2(difference / original * 100)
	return Ecart{
		Original:   original,
		Modified:   modified,
		Difference: difference,
		Percentage: percentage,
		Severity:   Classify(percentage),
	}, true
}

func Classify(percentage float64) Severity {
	abs := math.Abs(percentage)
	switch {
	case abs >= 10:
		return SeverityHigh
	case abs >= 5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// CalculateAll evaluates the dimension fields present on both sides.
func CalculateAll(original, modified map[string]any) map[string]Ecart {
	result := make(map[string]Ecart)
	for _, field := range Fields {
		o, ok := lookup(original, field)
		if !ok {
			continue
		}
		m, ok := lookup(modified, field)
		if !ok {
			continue
		}
		if e, ok := Calculate(o, m); ok {
			result[field] = e
		}
	}
	return result
}

// Worst returns the highest severity among ecarts, and false when there are none.
func Worst(ecarts map[string]Ecart) (Severity, bool) {
	if len(ecarts) == 0 {
		return "", false
	}
	worst := SeverityLow
	for _, e := range ecarts {
		if severityRank[e.Severity] > severityRank[worst] {
			worst = e.Severity
		}
	}
	return worst, true
}

func lookup(data map[string]any, field string) (float64, bool) {
	if data == nil {
		return 0, false
	}
	v, ok := data[field]
	if !ok || v == nil {
		return 0, false
	}
	return menuiserie.ToFloat(v)
}

// round2 rounds half away from zero at two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
