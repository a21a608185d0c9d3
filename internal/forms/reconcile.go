package forms

import (
	"fmt"
	"strconv"
	"strings"
)

type RenderMode string

const (
	RenderInput        RenderMode = "input"
	RenderSelect       RenderMode = "select"
	RenderCombobox     RenderMode = "combobox"
	RenderReadonlyText RenderMode = "readonly-text"
)

type ResolvedField struct {
	Field
	Mode          RenderMode `json:"mode"`
	Value         any        `json:"value"`
	OriginalValue any        `json:"originalValue"`
	Fallback      bool       `json:"fallback"`
}

// Reconcile picks how a field renders given the value it currently holds.
// A constrained choice whose value is outside its options and which came from
// the PDF degrades to read-only text instead of an unusable dropdown.
func Reconcile(field Field, current, original any) ResolvedField {
	resolved := ResolvedField{
		Field:         field,
		Mode:          declaredMode(field),
		Value:         current,
		OriginalValue: original,
	}
	if !isConstrained(field) {
		return resolved
	}
	value := stringify(current)
	if value == "" || hasOption(field.Options, value) {
		return resolved
	}
	if stringify(original) == "" {
		return resolved
	}
	resolved.Mode = RenderReadonlyText
	resolved.Fallback = true
	return resolved
}

// ReconcileAll resolves every field of cfg against modified and original data.
func ReconcileAll(cfg FormConfig, modified, original map[string]any) []ResolvedField {
	fields := cfg.Fields()
	out := make([]ResolvedField, 0, len(fields))
	for _, field := range fields {
		orig := original[field.Key]
		current := orig
		if v, ok := modified[field.Key]; ok && stringify(v) != "" {
			current = v
		}
		out = append(out, Reconcile(field, current, orig))
	}
	return out
}

func declaredMode(field Field) RenderMode {
	switch field.Type {
	case FieldSelect:
		return RenderSelect
	case FieldCombobox:
		return RenderCombobox
	default:
		return RenderInput
	}
}

func isConstrained(field Field) bool {
	switch field.Type {
	case FieldSelect:
		return true
	case FieldCombobox:
		return !field.AllowCustom
	default:
		return false
	}
}

func hasOption(options []string, value string) bool {
	for _, option := range options {
		if strings.EqualFold(strings.TrimSpace(option), value) {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
