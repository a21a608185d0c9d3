package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/julienbutty/prometrage-sub001/internal/model"
)

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) List(ctx context.Context) ([]model.Client, error) {
	var clients []model.Client
	if err := r.db.WithContext(ctx).Order("nom ASC").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *ClientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) Create(ctx context.Context, client *model.Client) error {
	return classify(r.db.WithContext(ctx).Create(client).Error)
}

// findOrCreateClient reuses an existing client with the same name, ignoring case.
func findOrCreateClient(tx *gorm.DB, client *model.Client) error {
	name := strings.TrimSpace(client.Nom)
	var existing model.Client
	err := tx.Where("LOWER(nom) = ?", strings.ToLower(name)).First(&existing).Error
	switch {
	case err == nil:
		*client = existing
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	client.Nom = name
	return classify(tx.Create(client).Error)
}
