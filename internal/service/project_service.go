package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/julienbutty/prometrage-sub001/internal/model"
	"github.com/julienbutty/prometrage-sub001/internal/repository"
	"github.com/julienbutty/prometrage-sub001/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExcelGenerator interface {
	Generate(report model.ProjectReport) ([]byte, error)
}

type ProjectService struct {
	projects *repository.ProjectRepository
	clients  *repository.ClientRepository
	store    storage.Store
	excel    ExcelGenerator
	log      zerolog.Logger
	now      func() time.Time
}

type ItemInput struct {
	Repere       string
	Intitule     string
	OriginalData map[string]any
}

type ProjectInput struct {
	Reference       string
	Adresse         string
	ReferenceClient string
	ClientID        *uuid.UUID
	Items           []ItemInput
}

type ClientInput struct {
	Nom       string
	Email     string
	Telephone string
}

func NewProjectService(
	projects *repository.ProjectRepository,
	clients *repository.ClientRepository,
	store storage.Store,
	excel ExcelGenerator,
	log zerolog.Logger,
) *ProjectService {
	return &ProjectService{
		projects: projects,
		clients:  clients,
		store:    store,
		excel:    excel,
		log:      log,
		now:      time.Now,
	}
}

func (s *ProjectService) List(ctx context.Context, search string) ([]ProjectSummary, error) {
	projects, err := s.projects.List(ctx, search)
	if err != nil {
		return nil, err
	}
	result := make([]ProjectSummary, 0, len(projects))
	for _, project := range projects {
		result = append(result, newProjectSummary(project))
	}
	return result, nil
}

func (s *ProjectService) Get(ctx context.Context, id uuid.UUID) (*ProjectDetail, error) {
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "project")
	}
	return newProjectDetail(*project), nil
}

func (s *ProjectService) Create(ctx context.Context, input ProjectInput) (*ProjectDetail, error) {
	if err := s.checkInput(ctx, &input); err != nil {
		return nil, err
	}

	project := &model.Project{
		Reference:       input.Reference,
		Adresse:         input.Adresse,
		ReferenceClient: input.ReferenceClient,
		ClientID:        input.ClientID,
	}
	for i, item := range input.Items {
		project.Menuiseries = append(project.Menuiseries, model.Menuiserie{
			Repere:       strings.TrimSpace(item.Repere),
			Intitule:     strings.TrimSpace(item.Intitule),
			OriginalData: datatypes.JSONMap(item.OriginalData),
			Ordre:        i,
		})
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, translate(err, "project")
	}
	return s.Get(ctx, project.ID)
}

func (s *ProjectService) Update(ctx context.Context, id uuid.UUID, input ProjectInput) (*ProjectDetail, error) {
	if err := s.checkInput(ctx, &input); err != nil {
		return nil, err
	}

	project := &model.Project{
		ID:              id,
		Reference:       input.Reference,
		Adresse:         input.Adresse,
		ReferenceClient: input.ReferenceClient,
		ClientID:        input.ClientID,
	}
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, translate(err, "project")
	}
	return s.Get(ctx, id)
}

// Delete removes the project, its items and its stored source document.
func (s *ProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		return translate(err, "project")
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return translate(err, "project")
	}
	if project.SourcePDF != "" && s.store != nil {
		if err := s.store.Delete(ctx, project.SourcePDF); err != nil {
			s.log.Warn().Err(err).Str("project_id", id.String()).Msg("failed to delete source pdf")
		}
	}
	return nil
}

func (s *ProjectService) Source(ctx context.Context, id uuid.UUID) (*FileResult, error) {
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "project")
	}
	if project.SourcePDF == "" || s.store == nil {
		return nil, fmt.Errorf("%w: project has no source document", ErrNotFound)
	}
	content, err := s.store.Open(ctx, project.SourcePDF)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: source document", ErrNotFound)
		}
		return nil, err
	}
	return &FileResult{
		FileName:    fmt.Sprintf("fiche-metrage-%s.pdf", fileToken(project.Reference, project.ID.String())),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

// Export builds the XLSX deviation report of a project.
func (s *ProjectService) Export(ctx context.Context, id uuid.UUID) (*FileResult, error) {
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "project")
	}

	report := model.ProjectReport{
		Project:     *project,
		Progress:    model.ProgressOf(project.Menuiseries),
		GeneratedAt: s.now(),
	}
	for _, item := range project.Menuiseries {
		report.Items = append(report.Items, newItemReport(item))
	}

	content, err := s.excel.Generate(report)
	if err != nil {
		return nil, err
	}
	return &FileResult{
		FileName:    fmt.Sprintf("ecarts-%s.xlsx", fileToken(project.Reference, project.ID.String())),
		ContentType: xlsxContentType,
		Content:     content,
	}, nil
}

func (s *ProjectService) ListClients(ctx context.Context) ([]model.Client, error) {
	return s.clients.List(ctx)
}

func (s *ProjectService) CreateClient(ctx context.Context, input ClientInput) (*model.Client, error) {
	client := &model.Client{
		Nom:       strings.TrimSpace(input.Nom),
		Email:     strings.TrimSpace(input.Email),
		Telephone: strings.TrimSpace(input.Telephone),
	}
	if client.Nom == "" {
		return nil, invalid("invalid client", fieldError("nom", "is required"))
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, translate(err, "client")
	}
	return client, nil
}

func (s *ProjectService) checkInput(ctx context.Context, input *ProjectInput) error {
	input.Reference = strings.TrimSpace(input.Reference)
	input.Adresse = strings.TrimSpace(input.Adresse)
	input.ReferenceClient = strings.TrimSpace(input.ReferenceClient)

	var fields []FieldError
	if input.Reference == "" {
		fields = append(fields, fieldError("reference", "is required"))
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.Intitule) == "" {
			fields = append(fields, fieldError(fmt.Sprintf("menuiseries[%d].intitule", i), "is required"))
		}
	}
	if len(fields) > 0 {
		return invalid("invalid project", fields...)
	}

	if input.ClientID != nil {
		if _, err := s.clients.Get(ctx, *input.ClientID); err != nil {
			if errors.Is(translate(err, "client"), ErrNotFound) {
				return invalid("invalid project", fieldError("clientId", "unknown client"))
			}
			return err
		}
	}
	return nil
}
