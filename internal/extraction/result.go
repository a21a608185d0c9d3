package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const DocumentTypeMeasurementSheet = "fiche_metrage"

type ClientInfo struct {
	Nom       string `json:"nom"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
}

type ProjectInfo struct {
	Reference       string     `json:"reference"`
	Adresse         string     `json:"adresse"`
	ReferenceClient string     `json:"referenceClient"`
	Client          ClientInfo `json:"client"`
}

type Item struct {
	Repere   string         `json:"repere"`
	Intitule string         `json:"intitule"`
	Data     map[string]any `json:"donnees"`
}

type Result struct {
	DocumentType string      `json:"documentType"`
	Confidence   *float64    `json:"confidence"`
	Project      ProjectInfo `json:"projet"`
	Items        []Item      `json:"menuiseries"`
}

// DecodeResult reads the JSON object embedded in a model reply. Markdown fences
// and surrounding prose are tolerated.
func DecodeResult(text string) (*Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, parsingError("no JSON object in model reply", nil)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text[start : end+1])))
	dec.UseNumber()
	var result Result
	if err := dec.Decode(&result); err != nil {
		return nil, parsingError("malformed JSON in model reply", err)
	}
	return &result, nil
}

// Check enforces the document type, the confidence floor and the presence of at
// least one item.
func (r *Result) Check(minConfidence float64) error {
	docType := strings.ToLower(strings.TrimSpace(r.DocumentType))
	if docType != DocumentTypeMeasurementSheet {
		return &ParseError{
			Kind:    KindInvalidDocument,
			Message: fmt.Sprintf("document is not a measurement sheet (%q)", r.DocumentType),
		}
	}

	confidence := 0.0
	if r.Confidence != nil {
		confidence = *r.Confidence
	}
	if confidence < minConfidence {
		return &ParseError{
			Kind:       KindLowConfidence,
			Message:    fmt.Sprintf("confidence %.2f below %.2f", confidence, minConfidence),
			Confidence: confidence,
		}
	}

	if len(r.Items) == 0 {
		return parsingError("no menuiserie found in document", nil)
	}
	for i := range r.Items {
		if r.Items[i].Data == nil {
			r.Items[i].Data = map[string]any{}
		}
	}
	return nil
}
