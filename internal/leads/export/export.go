// Package export writes lead lists as CSV or XLSX spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"travel_crm_backend/internal/leads/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Leads"

var headers = []string{
	"Consulta", "Nombre", "Teléfono", "Email", "Origen", "Provincia", "Ciudad",
	"Pasajeros", "Fecha viaje", "Estado", "Asignado", "Fuente", "Creado",
}

// NameFunc resolves an assignee id to a display name.
type NameFunc func(id uuid.UUID) string

func row(l repository.Lead, name NameFunc) []string {
	assignee := ""
	if l.AssignedTo != nil && name != nil {
		assignee = name(*l.AssignedTo)
	}
	passengers := ""
	if l.Passengers != nil {
		passengers = strconv.Itoa(*l.Passengers)
	}
	travel := ""
	if l.TravelDate != nil {
		travel = l.TravelDate.Format("2006-01-02")
	}
	return []string{
		l.InquiryNumber, l.FullName, l.Phone, str(l.Email), str(l.Origin), str(l.Province), str(l.City),
		passengers, travel, l.Status, assignee, l.Source, l.CreatedAt.Format(time.RFC3339),
	}
}

// WriteCSV writes leads with a header row.
func WriteCSV(w io.Writer, leads []repository.Lead, name NameFunc) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, l := range leads {
		if err := writer.Write(row(l, name)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes leads to a single-sheet workbook.
func WriteXLSX(w io.Writer, leads []repository.Lead, name NameFunc) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := setRow(f, 1, headers); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, l := range leads {
		if err := setRow(f, i+2, row(l, name)); err != nil {
			return err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheetName, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", n, err)
	}
	return nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
