package menuiserie

import "strings"

const (
	FieldSensOuverture    = "sensOuverture"
	FieldOuvrantPrincipal = "ouvrantPrincipal"

	DirectionGauche = "gauche"
	DirectionDroite = "droite"
)

// MapOpeningDirection converts the exterior-view wording of the measurement sheet
// into the interior-view side of the main leaf.
func MapOpeningDirection(raw string) (string, bool) {
	switch Normalize(raw) {
	case "droite tirant":
		return DirectionGauche, true
	case "gauche tirant":
		return DirectionDroite, true
	default:
		return "", false
	}
}

// OpeningDirection resolves the direction from item data. The current field wins
// over the legacy one, then modified data wins over original data.
func OpeningDirection(modified, original map[string]any) (string, bool) {
	raw, ok := firstString(
		lookupString(modified, FieldSensOuverture),
		lookupString(original, FieldSensOuverture),
		lookupString(modified, FieldOuvrantPrincipal),
		lookupString(original, FieldOuvrantPrincipal),
	)
	if !ok {
		return "", false
	}
	return MapOpeningDirection(raw)
}

func lookupString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return strings.TrimSpace(s)
}

func firstString(values ...string) (string, bool) {
	for _, v := range values {
		if v != "" {
			return v, true
		}
	}
	return "", false
}
