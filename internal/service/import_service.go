package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/julienbutty/prometrage-sub001/internal/extraction"
	"github.com/julienbutty/prometrage-sub001/internal/metrics"
	"github.com/julienbutty/prometrage-sub001/internal/model"
	"github.com/julienbutty/prometrage-sub001/internal/pdf"
	"github.com/julienbutty/prometrage-sub001/internal/repository"
	"github.com/julienbutty/prometrage-sub001/internal/storage"
)

type ImportConfig struct {
	MaxBytes int64
	MaxPages int
}

type ImportService struct {
	projects  *repository.ProjectRepository
	extractor extraction.Extractor
	store     storage.Store
	metrics   *metrics.Metrics
	cfg       ImportConfig
	log       zerolog.Logger
	now       func() time.Time
}

type ImportInput struct {
	FileName string
	Data     []byte
}

func NewImportService(
	projects *repository.ProjectRepository,
	extractor extraction.Extractor,
	store storage.Store,
	m *metrics.Metrics,
	cfg ImportConfig,
	log zerolog.Logger,
) *ImportService {
	if m == nil {
		m = metrics.Noop()
	}
	return &ImportService{
		projects:  projects,
		extractor: extractor,
		store:     store,
		metrics:   m,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Import checks the uploaded sheet, stores it, extracts its content and creates
// the client, project and menuiseries in one transaction.
func (s *ImportService) Import(ctx context.Context, input ImportInput) (*ProjectDetail, error) {
	if len(input.Data) == 0 {
		return nil, invalid("invalid upload", fieldError("file", "is required"))
	}
	if s.cfg.MaxBytes > 0 && int64(len(input.Data)) > s.cfg.MaxBytes {
		return nil, invalid("invalid upload", fieldError("file", fmt.Sprintf("must not exceed %d bytes", s.cfg.MaxBytes)))
	}

	inspection, err := pdf.Inspect(ctx, input.Data, s.cfg.MaxPages)
	if err != nil {
		s.metrics.RecordExtraction(string(extraction.KindInvalidDocument), 0)
		return nil, &extraction.ParseError{
			Kind:    extraction.KindInvalidDocument,
			Message: "uploaded file is not a readable PDF",
			Err:     err,
		}
	}
	if s.extractor == nil {
		return nil, ErrExtractionUnavailable
	}

	ref, err := s.store.Save(ctx, input.FileName, input.Data)
	if err != nil {
		return nil, fmt.Errorf("store source pdf: %w", err)
	}

	project, err := s.extractAndCreate(ctx, input.Data, inspection.Text, ref)
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), ref); delErr != nil {
			s.log.Warn().Err(delErr).Str("ref", ref).Msg("failed to remove stored pdf after import failure")
		}
		return nil, err
	}

	s.metrics.RecordImport()
	s.log.Info().
		Str("project_id", project.ID.String()).
		Str("reference", project.Reference).
		Int("pages", inspection.PageCount).
		Int("items", len(project.Menuiseries)).
		Msg("project imported")

	detail, err := s.projects.Get(ctx, project.ID)
	if err != nil {
		return nil, translate(err, "project")
	}
	return newProjectDetail(*detail), nil
}

func (s *ImportService) extractAndCreate(ctx context.Context, data []byte, textHint, ref string) (*model.Project, error) {
	started := s.now()
	result, err := s.extractor.Extract(ctx, extraction.Document{PDF: data, TextHint: textHint})
	elapsed := s.now().Sub(started)
	if err != nil {
		var parseErr *extraction.ParseError
		switch {
		case errors.As(err, &parseErr):
			s.metrics.RecordExtraction(string(parseErr.Kind), elapsed)
			return nil, err
		case errors.Is(err, extraction.ErrNotConfigured):
			return nil, fmt.Errorf("%w: %v", ErrExtractionUnavailable, err)
		default:
			s.metrics.RecordExtraction("error", elapsed)
			return nil, err
		}
	}
	s.metrics.RecordExtraction("success", elapsed)

	project := s.buildProject(result, ref)
	var client *model.Client
	if info := result.Project.Client; strings.TrimSpace(info.Nom) != "" {
		client = &model.Client{
			Nom:       strings.TrimSpace(info.Nom),
			Email:     strings.TrimSpace(info.Email),
			Telephone: strings.TrimSpace(info.Telephone),
		}
	}

	if err := s.projects.CreateWithClient(ctx, client, project); err != nil {
		return nil, translate(err, "project")
	}
	return project, nil
}

func (s *ImportService) buildProject(result *extraction.Result, ref string) *model.Project {
	reference := strings.TrimSpace(result.Project.Reference)
	if reference == "" {
		reference = fmt.Sprintf("IMPORT-%s-%s", s.now().Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
	}

	project := &model.Project{
		Reference:       reference,
		Adresse:         strings.TrimSpace(result.Project.Adresse),
		ReferenceClient: strings.TrimSpace(result.Project.ReferenceClient),
		SourcePDF:       ref,
		Menuiseries:     make([]model.Menuiserie, 0, len(result.Items)),
	}
	for i, item := range result.Items {
		repere := strings.TrimSpace(item.Repere)
		if repere == "" {
			repere = fmt.Sprintf("M%d", i+1)
		}
		project.Menuiseries = append(project.Menuiseries, model.Menuiserie{
			Repere:       repere,
			Intitule:     strings.TrimSpace(item.Intitule),
			OriginalData: normalizeData(item.Data),
			Ordre:        i,
		})
	}
	return project
}

// normalizeData converts json.Number values to float64 and trims strings. Loaded
// items get the same numeric form from Menuiserie.AfterFind.
func normalizeData(data map[string]any) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				out[key] = f
			} else {
				out[key] = v.String()
			}
		case string:
			out[key] = strings.TrimSpace(v)
		default:
			out[key] = v
		}
	}
	return out
}
