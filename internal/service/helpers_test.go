package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/julienbutty/prometrage-sub001/internal/db"
	"github.com/julienbutty/prometrage-sub001/internal/excel"
	"github.com/julienbutty/prometrage-sub001/internal/extraction"
	"github.com/julienbutty/prometrage-sub001/internal/forms"
	"github.com/julienbutty/prometrage-sub001/internal/metrics"
	"github.com/julienbutty/prometrage-sub001/internal/model"
	"github.com/julienbutty/prometrage-sub001/internal/pdf"
	"github.com/julienbutty/prometrage-sub001/internal/repository"
	"github.com/julienbutty/prometrage-sub001/internal/storage"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeExtractor struct {
	result *extraction.Result
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, doc extraction.Document) (*extraction.Result, error) {
	f.calls++
	if len(doc.PDF) == 0 {
		return nil, &extraction.ParseError{Kind: extraction.KindInvalidDocument, Message: "empty"}
	}
	return f.result, f.err
}

type env struct {
	db        *gorm.DB
	store     *storage.FileStore
	fs        afero.Fs
	metrics   *metrics.Metrics
	extractor *fakeExtractor
	projects  *ProjectService
	items     *MenuiserieService
	imports   *ImportService
	orders    *PurchaseOrderService
}

func newEnv(t *testing.T) *env {
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

	registry, err := forms.NewRegistry()
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	store := storage.NewFileStore(fs)
	m := metrics.Noop()
	extractor := &fakeExtractor{}

	projectRepo := repository.NewProjectRepository(database)
	clientRepo := repository.NewClientRepository(database)
	itemRepo := repository.NewMenuiserieRepository(database)

	e := &env{
		db:        database,
		store:     store,
		fs:        fs,
		metrics:   m,
		extractor: extractor,
		projects:  NewProjectService(projectRepo, clientRepo, store, excel.NewGenerator(), zerolog.Nop()),
		items:     NewMenuiserieService(itemRepo, projectRepo, registry, m),
		imports:   NewImportService(projectRepo, extractor, store, m, ImportConfig{MaxBytes: 5 << 20, MaxPages: 10}, zerolog.Nop()),
		orders:    NewPurchaseOrderService(projectRepo, pdf.NewGenerator(), registry, m),
	}
	e.projects.now = func() time.Time { return fixedNow }
	e.imports.now = func() time.Time { return fixedNow }
	e.orders.now = func() time.Time { return fixedNow }
	return e
}

func (e *env) createProject(t *testing.T, reference string, intitules ...string) *ProjectDetail {
	t.Helper()
	input := ProjectInput{Reference: reference, Adresse: "8 allée des Tilleuls, Rennes"}
	for i, intitule := range intitules {
		input.Items = append(input.Items, ItemInput{
			Repere:   string(rune('A' + i)),
			Intitule: intitule,
			OriginalData: map[string]any{
				"largeur":          1000.0,
				"hauteur":          2000.0,
				"gamme":            "Efficience",
				"sensOuverture":    "Droite tirant",
				"habillageIntHaut": "Chambranle 70",
			},
		})
	}
	detail, err := e.projects.Create(context.Background(), input)
	require.NoError(t, err)
	return detail
}

// samplePDF produces a real one-page PDF for upload tests.
func samplePDF(t *testing.T) []byte {
	t.Helper()
	content, err := pdf.NewGenerator().Generate(model.PurchaseOrderDocument{
		Project: model.Project{Reference: "FICHE"},
		Item:    model.Menuiserie{Repere: "1", Intitule: "Fenêtre"},
		Date:    fixedNow,
	})
	require.NoError(t, err)
	return content
}

func floatPtr(v float64) *float64 {
	return &v
}
