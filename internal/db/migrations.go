package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/julienbutty/prometrage-sub001/internal/model"
)

var commonStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_menuiseries_project_ordre ON menuiseries (project_id, ordre);`,
	`CREATE INDEX IF NOT EXISTS idx_projects_created_at ON projects (created_at);`,
}

var postgresStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_projects_reference_lower ON projects (LOWER(reference));`,
	`CREATE INDEX IF NOT EXISTS idx_clients_nom_lower ON clients (LOWER(nom));`,
}

var sqliteStatements = []string{
	`PRAGMA foreign_keys = ON;`,
}

func runMigrations(db *gorm.DB) error {
	statements := commonStatements
	switch db.Dialector.Name() {
	case "postgres":
		statements = append(append([]string{}, commonStatements...), postgresStatements...)
	case "sqlite":
		statements = append(append([]string{}, sqliteStatements...), commonStatements...)
	}

	if err := db.AutoMigrate(&model.Client{}, &model.Project{}, &model.Menuiserie{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for i, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Migrate is exported for tests and tools that open their own connection.
func Migrate(db *gorm.DB) error {
	return runMigrations(db)
}
