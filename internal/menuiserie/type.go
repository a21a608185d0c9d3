package menuiserie

import (
	"regexp"
	"strconv"
	"strings"
)

type ProductType string

const (
	TypeFenetre      ProductType = "fenetre"
	TypePorteFenetre ProductType = "porte-fenetre"
	TypeCoulissant   ProductType = "coulissant"
	TypeGalandage    ProductType = "galandage"
	TypeChassisFixe  ProductType = "chassis-fixe"
	TypePorte        ProductType = "porte"
)

type ParsedType struct {
	Type  ProductType `json:"type"`
	Count int         `json:"count"`
}

// First match wins: "porte fenetre" and "chassis fixe" are checked before the
// bare "porte" and "fenetre" they may contain.
var typeKeywords = []struct {
	keyword string
	typ     ProductType
}{
	{"porte fenetre", TypePorteFenetre},
	{"coulissant", TypeCoulissant},
	{"galandage", TypeGalandage},
	{"chassis", TypeChassisFixe},
	{"fixe", TypeChassisFixe},
	{"porte", TypePorte},
	{"fenetre", TypeFenetre},
}

var (
	countDigits = regexp.MustCompile(`(\d+)\s*(vantaux|vantail|vtx|vx)\b`)
	countWords  = regexp.MustCompile(`\b(un|une|deux|trois|quatre|cinq|six)\s+(vantaux|vantail)\b`)
	wordValues  = map[string]int{"un": 1, "une": 1, "deux": 2, "trois": 3, "quatre": 4, "cinq": 5, "six": 6}
)

// ParseType reads the product type and leaf count from a free-text label such as
// "Fenêtre 2 vantaux". Unrecognized labels fall back to a single-leaf window.
func ParseType(label string) ParsedType {
	normalized := Normalize(label)
	parsed := ParsedType{Type: TypeFenetre, Count: 1}
	if normalized == "" {
		return parsed
	}

	for _, kw := range typeKeywords {
		if containsWord(normalized, kw.keyword) {
			parsed.Type = kw.typ
			break
		}
	}

	if m := countDigits.FindStringSubmatch(normalized); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			parsed.Count = n
		}
	} else if m := countWords.FindStringSubmatch(normalized); m != nil {
		parsed.Count = wordValues[m[1]]
	}
	return parsed
}

// containsWord matches keyword at a word start, so "coulissant" also covers
// "coulissante".
func containsWord(haystack, word string) bool {
	return strings.Contains(" "+haystack, " "+word)
}
