package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/julienbutty/prometrage-sub001/internal/ecart"
	"github.com/julienbutty/prometrage-sub001/internal/menuiserie"
	"github.com/julienbutty/prometrage-sub001/internal/model"
)

const (
	summarySheet = "Synthèse"
	detailSheet  = "Écarts"
)

var statusLabels = map[model.Status]string{
	model.StatusImported:   "Importée",
	model.StatusInProgress: "En cours",
	model.StatusValidated:  "Validée",
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.ProjectReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, report)

	if _, err := file.NewSheet(detailSheet); err != nil {
		return nil, err
	}
	g.writeDetail(file, report)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report model.ProjectReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	clientName := ""
	if report.Project.Client != nil {
		clientName = report.Project.Client.Nom
	}

	set("A1", "Projet")
	set("B1", report.Project.Reference)
	set("A2", "Client")
	set("B2", clientName)
	set("A3", "Adresse")
	set("B3", report.Project.Adresse)
	set("A4", "Référence client")
	set("B4", report.Project.ReferenceClient)
	set("A5", "Généré le")
	set("B5", formatDateTime(report.GeneratedAt))
	set("A7", "Menuiseries")
	set("B7", report.Progress.Total)
	set("A8", "Importées")
	set("B8", report.Progress.Imported)
	set("A9", "En cours")
	set("B9", report.Progress.InProgress)
	set("A10", "Validées")
	set("B10", report.Progress.Validated)

	counts := map[ecart.Severity]int{}
	for _, item := range report.Items {
		if item.Worst != "" {
			counts[item.Worst]++
		}
	}
	set("A12", "Écarts élevés (≥ 10 %)")
	set("B12", counts[ecart.SeverityHigh])
	set("A13", "Écarts moyens (5 à 10 %)")
	set("B13", counts[ecart.SeverityMedium])
	set("A14", "Écarts faibles (< 5 %)")
	set("B14", counts[ecart.SeverityLow])

	_ = file.SetColWidth(summarySheet, "A", "A", 28)
	_ = file.SetColWidth(summarySheet, "B", "B", 40)
}

func (g *Generator) writeDetail(file *excelize.File, report model.ProjectReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(detailSheet, cell, value)
	}

	headers := []string{"Repère", "Intitulé", "Type", "Vantaux", "Statut"}
	for _, field := range ecart.Fields {
		headers = append(headers,
			field+" fiche",
			field+" retenue",
			field+" écart (mm)",
			field+" écart (%)",
		)
	}
	headers = append(headers, "Niveau max")

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for r, row := range report.Items {
		rowNum := r + 2
		col := 1
		next := func(value interface{}) {
			cell, _ := excelize.CoordinatesToCellName(col, rowNum)
			set(cell, value)
			col++
		}

		next(row.Item.Repere)
		next(row.Item.Intitule)
		next(string(row.Type.Type))
		next(row.Type.Count)
		next(statusLabels[row.Status])
		for _, field := range ecart.Fields {
			e, ok := row.Ecarts[field]
			if !ok {
				next(cellValue(row.Item.OriginalData[field]))
				retained, _ := row.Item.Value(field)
				next(cellValue(retained))
				next("")
				next("")
				continue
			}
			next(e.Original)
			next(e.Modified)
			next(e.Difference)
			next(e.Percentage)
		}
		next(string(row.Worst))
	}

	_ = file.SetColWidth(detailSheet, "A", "A", 16)
	_ = file.SetColWidth(detailSheet, "B", "B", 32)
	_ = file.SetColWidth(detailSheet, "C", "E", 14)
	_ = file.SetPanes(detailSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// cellValue keeps numeric measurements as number cells so they can be summed.
func cellValue(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	if f, ok := menuiserie.ToFloat(v); ok {
		return f
	}
	return fmt.Sprint(v)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
