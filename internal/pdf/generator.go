package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/julienbutty/prometrage-sub001/internal/ecart"
	"github.com/julienbutty/prometrage-sub001/internal/menuiserie"
	"github.com/julienbutty/prometrage-sub001/internal/model"
)

const fontName = "Helvetica"

var dimensionLabels = map[string]string{
	ecart.FieldLargeur:       "Largeur",
	ecart.FieldHauteur:       "Hauteur",
	ecart.FieldHauteurAllege: "Hauteur d'allège",
}

var typeLabels = map[menuiserie.ProductType]string{
	menuiserie.TypeFenetre:      "Fenêtre",
	menuiserie.TypePorteFenetre: "Porte-fenêtre",
	menuiserie.TypeCoulissant:   "Coulissant",
	menuiserie.TypeGalandage:    "Galandage",
	menuiserie.TypeChassisFixe:  "Châssis fixe",
	menuiserie.TypePorte:        "Porte",
}

var severityLabels = map[ecart.Severity]string{
	ecart.SeverityLow:    "faible",
	ecart.SeverityMedium: "moyen",
	ecart.SeverityHigh:   "élevé",
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders one purchase order per page, in the given order.
func (g *Generator) Generate(docs ...model.PurchaseOrderDocument) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no purchase order to render")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetFillColor(230, 230, 230)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, doc := range docs {
		pdf.AddPage()
		renderPage(pdf, tr, doc)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPage(pdf *gofpdf.Fpdf, tr func(string) string, doc model.PurchaseOrderDocument) {
	pdf.SetFont(fontName, "B", 16)
	pdf.CellFormat(0, 10, tr("BON DE COMMANDE"), "", 1, "C", false, 0, "")

	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Projet %s du %s", safeValue(doc.Project.Reference), formatDate(doc.Date))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addClientBlock(pdf, tr, doc.Project)
	pdf.Ln(3)

	sectionTitle(pdf, tr, "Menuiserie")
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Repère : %s", safeValue(doc.Item.Repere))), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Intitulé : %s", safeValue(doc.Item.Intitule))), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Type : %s, %s", typeLabel(doc.Type.Type), leafLabel(doc.Type.Count))), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	sectionTitle(pdf, tr, "Dimensions")
	headers := []string{"Cote", "Fiche (mm)", "Retenue (mm)", "Écart (mm)", "Écart (%)", "Niveau"}
	widths := []float64{45, 28, 28, 28, 25, 26}
	drawTableRow(pdf, tr, headers, widths, true)
	for _, field := range ecart.Fields {
		original, hasOriginal := doc.Item.OriginalData[field]
		retained, hasRetained := doc.Item.Value(field)
		if !hasOriginal && !hasRetained {
			continue
		}
		row := []string{dimensionLabels[field], formatValue(original), formatValue(retained), "—", "—", "—"}
		if e, ok := doc.Ecarts[field]; ok {
			row[3] = formatSigned(e.Difference)
			row[4] = formatSigned(e.Percentage)
			row[5] = severityLabels[e.Severity]
		}
		drawTableRow(pdf, tr, row, widths, false)
	}
	pdf.Ln(3)

	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Sens d'ouverture (vue intérieure) : %s", safeValue(doc.Direction))), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	sectionTitle(pdf, tr, "Habillages")
	habWidths := []float64{40, 35, 35, 35, 35}
	drawTableRow(pdf, tr, []string{"", "Haut", "Bas", "Gauche", "Droite"}, habWidths, true)
	drawTableRow(pdf, tr, habillageRow("Intérieur", doc.HabillageInt), habWidths, false)
	drawTableRow(pdf, tr, habillageRow("Extérieur", doc.HabillageExt), habWidths, false)
	pdf.Ln(3)

	if len(doc.Characteristics) > 0 {
		sectionTitle(pdf, tr, "Caractéristiques")
		pdf.SetFont(fontName, "", 10)
		for _, c := range doc.Characteristics {
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("%s : %s", c.Label, safeValue(c.Value))), "", "L", false)
		}
		pdf.Ln(2)
	}

	if strings.TrimSpace(doc.Observations) != "" {
		sectionTitle(pdf, tr, "Observations")
		pdf.SetFont(fontName, "", 10)
		pdf.MultiCell(0, 5, tr(doc.Observations), "1", "L", false)
		pdf.Ln(2)
	}

	pdf.Ln(4)
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, tr("Bon pour commande, le ____________   Signature : ______________________"), "", 1, "L", false, 0, "")
}

func addClientBlock(pdf *gofpdf.Fpdf, tr func(string) string, project model.Project) {
	sectionTitle(pdf, tr, "Client")
	pdf.SetFont(fontName, "", 10)
	name, email, phone := "", "", ""
	if project.Client != nil {
		name, email, phone = project.Client.Nom, project.Client.Email, project.Client.Telephone
	}
	lines := []string{
		safeValue(name),
		fmt.Sprintf("Adresse du chantier : %s", safeValue(project.Adresse)),
		fmt.Sprintf("Référence client : %s", safeValue(project.ReferenceClient)),
		fmt.Sprintf("Téléphone : %s", safeValue(phone)),
		fmt.Sprintf("Email : %s", safeValue(email)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func sectionTitle(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
}

func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 {
			align = "C"
		}
		pdf.CellFormat(widths[i], 7, tr(col), "1", 0, align, header, 0, "")
	}
	pdf.Ln(-1)
}

func habillageRow(label string, h model.Habillage) []string {
	return []string{label, safeValue(h.Haut), safeValue(h.Bas), safeValue(h.Gauche), safeValue(h.Droite)}
}

func typeLabel(t menuiserie.ProductType) string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return string(t)
}

func leafLabel(count int) string {
	if count <= 1 {
		return "1 vantail"
	}
	return fmt.Sprintf("%d vantaux", count)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "—"
	}
	return value
}

// FormatValue renders a data value the way it is printed on documents.
func FormatValue(v any) string {
	return formatValue(v)
}

func formatValue(v any) string {
	if v == nil {
		return "—"
	}
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if s, ok := v.(string); ok {
		return safeValue(s)
	}
	return safeValue(fmt.Sprint(v))
}

func formatSigned(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v > 0 {
		return "+" + s
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("02.01.2006")
}
