package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julienbutty/prometrage-sub001/internal/ecart"
	"github.com/julienbutty/prometrage-sub001/internal/forms"
	"github.com/julienbutty/prometrage-sub001/internal/menuiserie"
	"github.com/julienbutty/prometrage-sub001/internal/metrics"
	"github.com/julienbutty/prometrage-sub001/internal/model"
	"github.com/julienbutty/prometrage-sub001/internal/pdf"
	"github.com/julienbutty/prometrage-sub001/internal/repository"
)

type PurchaseOrderFormat string

const (
	FormatAuto PurchaseOrderFormat = ""
	FormatPDF  PurchaseOrderFormat = "pdf"
	FormatZIP  PurchaseOrderFormat = "zip"
)

type PDFGenerator interface {
	Generate(docs ...model.PurchaseOrderDocument) ([]byte, error)
}

type PurchaseOrderService struct {
	projects *repository.ProjectRepository
	pdf      PDFGenerator
	forms    *forms.Registry
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewPurchaseOrderService(
	projects *repository.ProjectRepository,
	generator PDFGenerator,
	registry *forms.Registry,
	m *metrics.Metrics,
) *PurchaseOrderService {
	if m == nil {
		m = metrics.Noop()
	}
	return &PurchaseOrderService{projects: projects, pdf: generator, forms: registry, metrics: m, now: time.Now}
}

func ParsePurchaseOrderFormat(raw string) (PurchaseOrderFormat, error) {
	switch PurchaseOrderFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatAuto:
		return FormatAuto, nil
	case FormatPDF:
		return FormatPDF, nil
	case FormatZIP:
		return FormatZIP, nil
	default:
		return "", invalid("invalid format", fieldError("format", "must be pdf or zip"))
	}
}

// Generate renders the purchase orders of the validated items of a project.
// Without an explicit format a single item yields a PDF and several a ZIP.
func (s *PurchaseOrderService) Generate(ctx context.Context, projectID uuid.UUID, format PurchaseOrderFormat) (*FileResult, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, translate(err, "project")
	}

	var validated []model.Menuiserie
	for _, item := range project.Menuiseries {
		if item.Validated {
			validated = append(validated, item)
		}
	}
	if len(validated) == 0 {
		return nil, ErrNoValidatedItems
	}

	date := s.now()
	docs := make([]model.PurchaseOrderDocument, 0, len(validated))
	for _, item := range validated {
		docs = append(docs, s.buildDocument(*project, item, date))
	}

	if format == FormatAuto {
		format = FormatPDF
		if len(docs) > 1 {
			format = FormatZIP
		}
	}

	reference := fileToken(project.Reference, project.ID.String())
	var result *FileResult
	switch format {
	case FormatPDF:
		content, err := s.pdf.Generate(docs...)
		if err != nil {
			return nil, fmt.Errorf("generate purchase order: %w", err)
		}
		name := fmt.Sprintf("bons-de-commande-%s.pdf", reference)
		if len(docs) == 1 {
			name = itemFileName(reference, docs[0].Item)
		}
		result = &FileResult{FileName: name, ContentType: "application/pdf", Content: content}
	case FormatZIP:
		content, err := s.zip(ctx, reference, docs)
		if err != nil {
			return nil, err
		}
		result = &FileResult{
			FileName:    fmt.Sprintf("bons-de-commande-%s.zip", reference),
			ContentType: "application/zip",
			Content:     content,
		}
	default:
		return nil, invalid("invalid format", fieldError("format", "must be pdf or zip"))
	}

	s.metrics.RecordPurchaseOrders(string(format), len(docs))
	return result, nil
}

// zip renders one PDF per document. Any failure aborts the whole archive.
func (s *PurchaseOrderService) zip(ctx context.Context, reference string, docs []model.PurchaseOrderDocument) ([]byte, error) {
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	used := make(map[string]int, len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := s.pdf.Generate(doc)
		if err != nil {
			return nil, fmt.Errorf("generate purchase order %s: %w", doc.Item.Repere, err)
		}
		name := uniqueName(used, itemFileName(reference, doc.Item))
		w, err := archive.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: doc.Date,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
	}
	if err := archive.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	habillageSides = []string{"Haut", "Bas", "Gauche", "Droite"}
	directionKeys  = map[string]bool{menuiserie.FieldSensOuverture: true, menuiserie.FieldOuvrantPrincipal: true}
)

const observationsKey = "observations"

func (s *PurchaseOrderService) buildDocument(project model.Project, item model.Menuiserie, date time.Time) model.PurchaseOrderDocument {
	parsed := menuiserie.ParseType(item.Intitule)
	doc := model.PurchaseOrderDocument{
		Project:      project,
		Item:         item,
		Type:         parsed,
		Ecarts:       ecart.CalculateAll(item.OriginalData, item.ModifiedData),
		HabillageInt: habillage(item, "habillageInt"),
		HabillageExt: habillage(item, "habillageExt"),
		Date:         date,
	}
	doc.Project.Menuiseries = nil
	if direction, ok := menuiserie.OpeningDirection(item.ModifiedData, item.OriginalData); ok {
		doc.Direction = direction
	}
	if v, ok := item.Value(observationsKey); ok {
		doc.Observations = fmt.Sprint(v)
	}

	skip := func(key string) bool {
		if directionKeys[key] || key == observationsKey || strings.HasPrefix(key, "habillage") {
			return true
		}
		for _, field := range ecart.Fields {
			if key == field {
				return true
			}
		}
		return false
	}

	seen := make(map[string]bool)
	if s.forms != nil {
		for _, field := range s.forms.Resolve(string(parsed.Type)).Fields() {
			seen[field.Key] = true
			if skip(field.Key) {
				continue
			}
			if v, ok := item.Value(field.Key); ok {
				doc.Characteristics = append(doc.Characteristics, model.Characteristic{Label: field.Label, Value: pdf.FormatValue(v)})
			}
		}
	}

	// keys unknown to the form are still printed, by key name
	var extra []string
	for _, data := range []map[string]any{item.OriginalData, item.ModifiedData} {
		for key := range data {
			if !seen[key] && !skip(key) {
				seen[key] = true
				extra = append(extra, key)
			}
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		if v, ok := item.Value(key); ok {
			doc.Characteristics = append(doc.Characteristics, model.Characteristic{Label: key, Value: pdf.FormatValue(v)})
		}
	}
	return doc
}

func habillage(item model.Menuiserie, prefix string) model.Habillage {
	values := make([]string, len(habillageSides))
	for i, side := range habillageSides {
		if v, ok := item.Value(prefix + side); ok {
			values[i] = fmt.Sprint(v)
		}
	}
	return model.Habillage{Haut: values[0], Bas: values[1], Gauche: values[2], Droite: values[3]}
}

func itemFileName(reference string, item model.Menuiserie) string {
	return fmt.Sprintf("bon-de-commande-%s-%s.pdf", reference, fileToken(item.Repere, item.ID.String()[:8]))
}

// uniqueName appends -2, -3 ... to names already present in the archive.
func uniqueName(used map[string]int, name string) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	base := strings.TrimSuffix(name, ".pdf")
	for n := used[name]; ; n++ {
		candidate := fmt.Sprintf("%s-%d.pdf", base, n)
		if used[candidate] == 0 {
			used[candidate] = 1
			return candidate
		}
	}
}

func fileToken(value, fallback string) string {
	if token := sanitizeFileName(value); token != "" {
		return token
	}
	return fallback
}

func sanitizeFileName(input string) string {
	folded := menuiserie.FoldAccents(input)
	result := make([]rune, 0, len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return collapseDashes(strings.Trim(string(result), "-"))
}

func collapseDashes(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}
