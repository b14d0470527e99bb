// Package importer turns CSV and XLSX lead files into validated import rows.
// A file with any invalid row is rejected as a whole.
package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"travel_crm_backend/internal/leads/management"
	"travel_crm_backend/platform/apperr"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxRows bounds a single import file.
const MaxRows = 5000

// Format is the file encoding of an import.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const (
	colFullName   = "full_name"
	colPhone      = "phone"
	colEmail      = "email"
	colOrigin     = "origin"
	colProvince   = "province"
	colCity       = "city"
	colPassengers = "passengers"
	colTravelDate = "travel_date"
	colNotes      = "notes"
)

var headerAliases = map[string]string{
	"full_name":   colFullName,
	"fullname":    colFullName,
	"nombre":      colFullName,
	"name":        colFullName,
	"phone":       colPhone,
	"telefono":    colPhone,
	"celular":     colPhone,
	"email":       colEmail,
	"correo":      colEmail,
	"origin":      colOrigin,
	"origen":      colOrigin,
	"campaign":    colOrigin,
	"campana":     colOrigin,
	"province":    colProvince,
	"provincia":   colProvince,
	"city":        colCity,
	"ciudad":      colCity,
	"passengers":  colPassengers,
	"pasajeros":   colPassengers,
	"travel_date": colTravelDate,
	"fecha_viaje": colTravelDate,
	"notes":       colNotes,
	"notas":       colNotes,
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006"}

// InvalidRow explains why one line was rejected.
type InvalidRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// InvalidRowsDetails is attached to the validation error of a rejected batch.
type InvalidRowsDetails struct {
	InvalidRows int          `json:"invalidRows"`
	Rows        []InvalidRow `json:"rows"`
}

// DetectFormat picks the format from the file name.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", apperr.BadRequest("unsupported file type; use .csv or .xlsx")
	}
}

// Parse reads the file and returns one row per non-blank data line. Every
// row carries the defaults from base (organization, branch).
func Parse(format Format, r io.Reader, base management.CreateLeadInput) ([]management.ImportRow, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatCSV:
		records, err = readCSV(r)
	case FormatXLSX:
		records, err = readXLSX(r)
	default:
		return nil, apperr.BadRequest("unsupported file type")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "could not read import file", err)
	}
	return buildRows(records, base)
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

// detectDelimiter chooses ';' when the header line has more semicolons than
// commas, as exported by spreadsheet tools in es-AR locales.
func detectDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func buildRows(records [][]string, base management.CreateLeadInput) ([]management.ImportRow, error) {
	if len(records) < 2 {
		return nil, apperr.Validation("file has no data rows")
	}
	if len(records)-1 > MaxRows {
		return nil, apperr.Validation(fmt.Sprintf("file exceeds %d rows", MaxRows))
	}

	columns := mapHeader(records[0])
	if _, ok := columns[colFullName]; !ok {
		return nil, apperr.Validation("missing full_name/nombre column")
	}
	if _, ok := columns[colPhone]; !ok {
		return nil, apperr.Validation("missing phone/telefono column")
	}

	rows := make([]management.ImportRow, 0, len(records)-1)
	invalid := make([]InvalidRow, 0)
	for i, record := range records[1:] {
		line := i + 2
		if isBlank(record) {
			continue
		}
		get := func(col string) string {
			idx, ok := columns[col]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		in := base
		in.FullName = get(colFullName)
		in.Phone = get(colPhone)
		in.Email = optional(get(colEmail))
		in.Origin = optional(get(colOrigin))
		in.Province = optional(get(colProvince))
		in.City = optional(get(colCity))
		in.Notes = optional(get(colNotes))

		var reasons []string
		if in.FullName == "" {
			reasons = append(reasons, "full name is required")
		}
		if in.Phone == "" {
			reasons = append(reasons, "phone is required")
		}
		if raw := get(colPassengers); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				reasons = append(reasons, "passengers must be a positive number")
			} else {
				in.Passengers = &n
			}
		}
		if raw := get(colTravelDate); raw != "" {
			d, ok := parseDate(raw)
			if !ok {
				reasons = append(reasons, "travel date must be YYYY-MM-DD or DD/MM/YYYY")
			} else {
				in.TravelDate = &d
			}
		}

		if len(reasons) > 0 {
			invalid = append(invalid, InvalidRow{Row: line, Reason: strings.Join(reasons, "; ")})
			continue
		}
		rows = append(rows, management.ImportRow{Line: line, Input: in})
	}

	if len(invalid) > 0 {
		return nil, apperr.Validation(fmt.Sprintf("%d invalid rows; nothing was imported", len(invalid))).
			WithDetails(InvalidRowsDetails{InvalidRows: len(invalid), Rows: invalid})
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("file has no data rows")
	}
	return rows, nil
}

func mapHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		if canonical, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, seen := columns[canonical]; !seen {
				columns[canonical] = i
			}
		}
	}
	return columns
}

// normalizeHeader folds case, strips accents and joins words with '_'.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, h)
	if err != nil {
		stripped = h
	}
	folded := cases.Fold().String(strings.TrimSpace(stripped))
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	}), "_")
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
