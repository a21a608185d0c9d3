package menuiserie

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToFloat coerces a JSON-decoded value into a number. Numeric strings may use a
// comma decimal separator and space thousands separators ("1 250,5").
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseNumber(n)
	default:
		return 0, false
	}
}

func parseNumber(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		case ',':
			return '.'
		}
		return r
	}, strings.TrimSpace(raw))
	cleaned = strings.TrimSuffix(strings.ToLower(cleaned), "mm")
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
