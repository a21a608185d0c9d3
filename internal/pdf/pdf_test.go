package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/julienbutty/prometrage-sub001/internal/ecart"
	"github.com/julienbutty/prometrage-sub001/internal/menuiserie"
	"github.com/julienbutty/prometrage-sub001/internal/model"
)

func sampleDocument(repere string) model.PurchaseOrderDocument {
	original := datatypes.JSONMap{"largeur": 1200.0, "hauteur": 1350.0, "materiau": "PVC"}
	modified := datatypes.JSONMap{"largeur": 1185.0, "hauteur": 1500.0}
	return model.PurchaseOrderDocument{
		Project: model.Project{
			Reference: "CH-2025-014",
			Adresse:   "12 rue des Lilas, Nantes",
			Client:    &model.Client{Nom: "Mme Dupont", Telephone: "0601020304"},
		},
		Item: model.Menuiserie{
			Repere:       repere,
			Intitule:     "Fenêtre 2 vantaux",
			OriginalData: original,
			ModifiedData: modified,
			Validated:    true,
		},
		Type:            menuiserie.ParseType("Fenêtre 2 vantaux"),
		Ecarts:          ecart.CalculateAll(original, modified),
		Direction:       menuiserie.DirectionGauche,
		HabillageInt:    model.Habillage{Haut: "Chambranle", Gauche: "Plat"},
		Characteristics: []model.Characteristic{{Label: "Matériau", Value: "PVC"}},
		Observations:    "Prévoir dépose de l'existant.",
		Date:            time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestGenerateProducesPDF(t *testing.T) {
	content, err := NewGenerator().Generate(sampleDocument("Séjour"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
}

func TestGenerateRequiresDocuments(t *testing.T) {
	_, err := NewGenerator().Generate()
	assert.Error(t, err)
}

func TestInspectGeneratedDocument(t *testing.T) {
	content, err := NewGenerator().Generate(sampleDocument("Séjour"), sampleDocument("Cuisine"))
	require.NoError(t, err)

	inspection, err := Inspect(context.Background(), content, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, inspection.PageCount)

	_, err = Inspect(context.Background(), content, 1)
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestInspectRejectsNonPDF(t *testing.T) {
	_, err := Inspect(context.Background(), []byte("PK\x03\x04 not a pdf"), 10)
	assert.ErrorIs(t, err, ErrNotPDF)

	_, err = Inspect(context.Background(), []byte("%PDF-1.7\ngarbage"), 10)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestInspectRejectsEncrypted(t *testing.T) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetProtection(gofpdf.CnProtectPrint, "", "owner-secret")
	doc.AddPage()
	doc.SetFont(fontName, "", 12)
	doc.Cell(40, 10, "fiche")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	_, err := Inspect(context.Background(), buf.Bytes(), 10)
	assert.ErrorIs(t, err, ErrEncrypted)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "1185", formatValue(1185.0))
	assert.Equal(t, "—", formatValue(nil))
	assert.Equal(t, "—", formatValue("  "))
	assert.Equal(t, "+12.5", formatSigned(12.5))
	assert.Equal(t, "-15", formatSigned(-15))
	assert.Equal(t, "0", formatSigned(0))
	assert.Equal(t, "2 vantaux", leafLabel(2))
	assert.Equal(t, "1 vantail", leafLabel(0))
	assert.Equal(t, "Porte-fenêtre", typeLabel(menuiserie.TypePorteFenetre))
	assert.Equal(t, "10.03.2025", formatDate(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
}
