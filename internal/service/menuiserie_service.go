package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/julienbutty/prometrage-sub001/internal/ecart"
	"github.com/julienbutty/prometrage-sub001/internal/forms"
	"github.com/julienbutty/prometrage-sub001/internal/menuiserie"
	"github.com/julienbutty/prometrage-sub001/internal/metrics"
	"github.com/julienbutty/prometrage-sub001/internal/repository"
)

type MenuiserieService struct {
	items    *repository.MenuiserieRepository
	projects *repository.ProjectRepository
	forms    *forms.Registry
	metrics  *metrics.Metrics
}

// UpdateItemInput replaces modifiedData unless the request only renames the
// item (Repere set, ModifiedData nil).
type UpdateItemInput struct {
	ModifiedData map[string]any
	Repere       *string
}

func NewMenuiserieService(
	items *repository.MenuiserieRepository,
	projects *repository.ProjectRepository,
	registry *forms.Registry,
	m *metrics.Metrics,
) *MenuiserieService {
	if m == nil {
		m = metrics.Noop()
	}
	return &MenuiserieService{items: items, projects: projects, forms: registry, metrics: m}
}

func (s *MenuiserieService) Get(ctx context.Context, id uuid.UUID) (*ItemView, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "menuiserie")
	}
	view := newItemView(*item)
	return &view, nil
}

// Update stores the corrections and the repère. An explicit empty modifiedData
// clears the corrections, which always drops the validated flag.
func (s *MenuiserieService) Update(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*ItemView, error) {
	if input.ModifiedData == nil && input.Repere == nil {
		return nil, invalid("nothing to update", fieldError("modifiedData", "is required when repere is absent"))
	}
	if fields := checkDimensions(input.ModifiedData); len(fields) > 0 {
		return nil, invalid("invalid measurements", fields...)
	}

	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "menuiserie")
	}

	if input.ModifiedData != nil {
		modified := compact(input.ModifiedData)
		if len(modified) == 0 {
			item.ModifiedData = nil
			item.Validated = false
		} else {
			item.ModifiedData = datatypes.JSONMap(modified)
		}
	}
	if input.Repere != nil {
		item.Repere = strings.TrimSpace(*input.Repere)
	}

	if err := s.items.Save(ctx, item); err != nil {
		return nil, translate(err, "menuiserie")
	}
	view := newItemView(*item)
	return &view, nil
}

func (s *MenuiserieService) Validate(ctx context.Context, id uuid.UUID) (*ItemView, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "menuiserie")
	}
	if !item.HasModifications() {
		return nil, invalid("menuiserie cannot be validated",
			fieldError("modifiedData", "measurements must be entered before validation"))
	}
	if !item.Validated {
		item.Validated = true
		if err := s.items.Save(ctx, item); err != nil {
			return nil, translate(err, "menuiserie")
		}
		s.metrics.RecordValidation()
	}
	view := newItemView(*item)
	return &view, nil
}

func (s *MenuiserieService) Unvalidate(ctx context.Context, id uuid.UUID) (*ItemView, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "menuiserie")
	}
	if item.Validated {
		item.Validated = false
		if err := s.items.Save(ctx, item); err != nil {
			return nil, translate(err, "menuiserie")
		}
	}
	view := newItemView(*item)
	return &view, nil
}

// PreviewEcarts computes deviations for unsaved values. Nothing is persisted.
func (s *MenuiserieService) PreviewEcarts(ctx context.Context, id uuid.UUID, modified map[string]any) (*EcartPreview, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "menuiserie")
	}
	preview := newPreview(item.OriginalData, modified)
	return &preview, nil
}

func (s *MenuiserieService) Form(ctx context.Context, id uuid.UUID) (*ItemForm, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "menuiserie")
	}

	parsed := menuiserie.ParseType(item.Intitule)
	cfg := s.forms.Resolve(string(parsed.Type))

	form := &ItemForm{
		ItemID:     item.ID.String(),
		FormKey:    cfg.Key,
		Label:      cfg.Label,
		ParsedType: parsed,
		Sections:   make([]ResolvedSection, 0, len(cfg.Sections)),
	}
	for _, section := range cfg.Sections {
		sub := forms.FormConfig{Key: cfg.Key, Sections: []forms.Section{section}}
		form.Sections = append(form.Sections, ResolvedSection{
			Title:  section.Title,
			Fields: forms.ReconcileAll(sub, item.ModifiedData, item.OriginalData),
		})
	}
	return form, nil
}

func (s *MenuiserieService) Reorder(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) error {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return translate(err, "project")
	}
	if err := s.items.Reorder(ctx, projectID, ids); err != nil {
		if errors.Is(err, repository.ErrOrderMismatch) {
			return invalid("invalid order", fieldError("ids", "must list every menuiserie of the project exactly once"))
		}
		return err
	}
	return nil
}

// checkDimensions requires dimension fields, when filled, to be non-negative numbers.
func checkDimensions(data map[string]any) []FieldError {
	var fields []FieldError
	for _, key := range ecart.Fields {
		v, ok := data[key]
		if !ok || isEmptyValue(v) {
			continue
		}
		f, ok := menuiserie.ToFloat(v)
		if !ok {
			fields = append(fields, fieldError("modifiedData."+key, "must be a number"))
			continue
		}
		if f < 0 {
			fields = append(fields, fieldError("modifiedData."+key, "must be greater than or equal to 0"))
		}
	}
	return fields
}

func compact(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		if isEmptyValue(value) {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
