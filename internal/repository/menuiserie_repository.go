package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/julienbutty/prometrage-sub001/internal/model"
)

var ErrOrderMismatch = errors.New("item order does not match the project items")

type MenuiserieRepository struct {
	db *gorm.DB
}

func NewMenuiserieRepository(db *gorm.DB) *MenuiserieRepository {
	return &MenuiserieRepository{db: db}
}

func (r *MenuiserieRepository) Get(ctx context.Context, id uuid.UUID) (*model.Menuiserie, error) {
	var item model.Menuiserie
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Save persists the editable columns: repere, modified data and validation flag.
func (r *MenuiserieRepository) Save(ctx context.Context, item *model.Menuiserie) error {
	result := r.db.WithContext(ctx).
		Model(item).
		Select("repere", "modified_data", "validated", "updated_at").
		Updates(item)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Reorder sets ordre to the position of each id. ids must list every item of
// the project exactly once.
func (r *MenuiserieRepository) Reorder(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []uuid.UUID
		if err := tx.Model(&model.Menuiserie{}).Where("project_id = ?", projectID).Pluck("id", &existing).Error; err != nil {
			return err
		}
		if len(existing) != len(ids) {
			return ErrOrderMismatch
		}
		known := make(map[uuid.UUID]bool, len(existing))
		for _, id := range existing {
			known[id] = true
		}
		for _, id := range ids {
			if !known[id] {
				return ErrOrderMismatch
			}
			delete(known, id)
		}

		for i, id := range ids {
			if err := tx.Model(&model.Menuiserie{}).Where("id = ?", id).Update("ordre", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
