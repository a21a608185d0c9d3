package service

import (
	"github.com/julienbutty/prometrage-sub001/internal/ecart"
	"github.com/julienbutty/prometrage-sub001/internal/forms"
	"github.com/julienbutty/prometrage-sub001/internal/menuiserie"
	"github.com/julienbutty/prometrage-sub001/internal/model"
)

// ItemView is a menuiserie with everything derived from its data.
type ItemView struct {
	model.Menuiserie
	State            model.Status           `json:"status"`
	ParsedType       menuiserie.ParsedType  `json:"parsedType"`
	OpeningDirection *string                `json:"openingDirection"`
	Ecarts           map[string]ecart.Ecart `json:"ecarts"`
	WorstSeverity    ecart.Severity         `json:"worstSeverity,omitempty"`
}

type ProjectSummary struct {
	model.Project
	Progress model.Progress `json:"progress"`
}

type ProjectDetail struct {
	model.Project
	Progress model.Progress `json:"progress"`
	Items    []ItemView     `json:"menuiseries"`
}

type EcartPreview struct {
	Ecarts        map[string]ecart.Ecart `json:"ecarts"`
	WorstSeverity ecart.Severity         `json:"worstSeverity,omitempty"`
}

type ItemForm struct {
	ItemID     string                `json:"itemId"`
	FormKey    string                `json:"formKey"`
	Label      string                `json:"label"`
	ParsedType menuiserie.ParsedType `json:"parsedType"`
	Sections   []ResolvedSection     `json:"sections"`
}

type ResolvedSection struct {
	Title  string                `json:"title"`
	Fields []forms.ResolvedField `json:"fields"`
}

type FileResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

func newItemView(item model.Menuiserie) ItemView {
	view := ItemView{
		Menuiserie: item,
		State:      item.Status(),
		ParsedType: menuiserie.ParseType(item.Intitule),
		Ecarts:     ecart.CalculateAll(item.OriginalData, item.ModifiedData),
	}
	if direction, ok := menuiserie.OpeningDirection(item.ModifiedData, item.OriginalData); ok {
		view.OpeningDirection = &direction
	}
	if worst, ok := ecart.Worst(view.Ecarts); ok {
		view.WorstSeverity = worst
	}
	return view
}

func newProjectSummary(project model.Project) ProjectSummary {
	progress := model.ProgressOf(project.Menuiseries)
	project.Menuiseries = nil
	return ProjectSummary{Project: project, Progress: progress}
}

func newProjectDetail(project model.Project) *ProjectDetail {
	items := make([]ItemView, 0, len(project.Menuiseries))
	for _, item := range project.Menuiseries {
		items = append(items, newItemView(item))
	}
	progress := model.ProgressOf(project.Menuiseries)
	project.Menuiseries = nil
	return &ProjectDetail{Project: project, Progress: progress, Items: items}
}

func newPreview(original, modified map[string]any) EcartPreview {
	preview := EcartPreview{Ecarts: ecart.CalculateAll(original, modified)}
	if worst, ok := ecart.Worst(preview.Ecarts); ok {
		preview.WorstSeverity = worst
	}
	return preview
}

func newItemReport(item model.Menuiserie) model.ItemReport {
	view := newItemView(item)
	return model.ItemReport{
		Item:   item,
		Type:   view.ParsedType,
		Status: view.State,
		Ecarts: view.Ecarts,
		Worst:  view.WorstSeverity,
	}
}
