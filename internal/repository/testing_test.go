package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/julienbutty/prometrage-sub001/internal/db"
	"github.com/julienbutty/prometrage-sub001/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

func newProject(reference string, items ...model.Menuiserie) *model.Project {
	for i := range items {
		items[i].Ordre = i
		if items[i].OriginalData == nil {
			items[i].OriginalData = datatypes.JSONMap{"largeur": 1200.0, "hauteur": 1350.0}
		}
	}
	return &model.Project{Reference: reference, Adresse: "12 rue des Lilas, Nantes", Menuiseries: items}
}
