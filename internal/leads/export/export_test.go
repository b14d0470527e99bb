package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"travel_crm_backend/internal/leads/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

func sampleLeads() ([]repository.Lead, uuid.UUID) {
	agent := uuid.New()
	province := "Córdoba"
	pax := 3
	return []repository.Lead{{
		InquiryNumber: "CONS-000007",
		FullName:      "Ana Pérez",
		Phone:         "+5491123456789",
		Province:      &province,
		Passengers:    &pax,
		Status:        "assigned",
		AssignedTo:    &agent,
		Source:        "manual",
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}, agent
}

func TestWriteCSV(t *testing.T) {
	leads, agent := sampleLeads()
	var buf bytes.Buffer

	err := WriteCSV(&buf, leads, func(id uuid.UUID) string {
		if id == agent {
			return "Laura"
		}
		return ""
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "CONS-000007,Ana Pérez") || !strings.Contains(lines[1], "Laura") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestWriteXLSX(t *testing.T) {
	leads, _ := sampleLeads()
	var buf bytes.Buffer

	if err := WriteXLSX(&buf, leads, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "CONS-000007" || rows[1][5] != "Córdoba" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}
