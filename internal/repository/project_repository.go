package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/julienbutty/prometrage-sub001/internal/model"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("ordre ASC").Order("created_at ASC")
}

// List returns projects with client and items, newest first. search matches
// reference, address, client reference or client name.
func (r *ProjectRepository) List(ctx context.Context, search string) ([]model.Project, error) {
	query := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Menuiseries", orderedItems).
		Order("created_at DESC")

	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		like := "%" + term + "%"
		query = query.Where(
			"LOWER(reference) LIKE ? OR LOWER(adresse) LIKE ? OR LOWER(reference_client) LIKE ? OR client_id IN (?)",
			like, like, like,
			r.db.Model(&model.Client{}).Select("id").Where("LOWER(nom) LIKE ?", like),
		)
	}

	var projects []model.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Menuiseries", orderedItems).
		First(&project, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Create inserts the project and any attached menuiseries.
func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	return classify(r.db.WithContext(ctx).Omit("Client").Create(project).Error)
}

// CreateWithClient resolves the client by name and inserts project and items
// in a single transaction.
func (r *ProjectRepository) CreateWithClient(ctx context.Context, client *model.Client, project *model.Project) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if client != nil && strings.TrimSpace(client.Nom) != "" {
			if err := findOrCreateClient(tx, client); err != nil {
				return err
			}
			project.ClientID = &client.ID
			project.Client = client
		}
		return classify(tx.Omit("Client").Create(project).Error)
	})
}

func (r *ProjectRepository) Update(ctx context.Context, project *model.Project) error {
	result := r.db.WithContext(ctx).
		Model(&model.Project{ID: project.ID}).
		Select("reference", "adresse", "reference_client", "client_id", "updated_at").
		Updates(project)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&model.Menuiserie{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Project{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
