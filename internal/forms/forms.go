package forms

import (
	"fmt"
	"strings"
)

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldCombobox FieldType = "combobox"
)

type Field struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Options     []string  `json:"options,omitempty"`
	AllowCustom bool      `json:"allowCustom,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	Required    bool      `json:"required,omitempty"`
}

type Section struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

type FormConfig struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Sections []Section `json:"sections"`
}

func (c FormConfig) Fields() []Field {
	var fields []Field
	for _, section := range c.Sections {
		fields = append(fields, section.Fields...)
	}
	return fields
}

func (c FormConfig) validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("form config without key")
	}
	seen := make(map[string]struct{})
	for _, field := range c.Fields() {
		if field.Key == "" {
			return fmt.Errorf("form %s: field without key", c.Key)
		}
		if _, dup := seen[field.Key]; dup {
			return fmt.Errorf("form %s: duplicate field %s", c.Key, field.Key)
		}
		seen[field.Key] = struct{}{}
		switch field.Type {
		case FieldText, FieldNumber:
		case FieldSelect, FieldCombobox:
			if len(field.Options) == 0 {
				return fmt.Errorf("form %s: field %s has no options", c.Key, field.Key)
			}
		default:
			return fmt.Errorf("form %s: field %s has unknown type %q", c.Key, field.Key, field.Type)
		}
	}
	return nil
}
