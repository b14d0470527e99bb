package management

import (
	"errors"

	"travel_crm_backend/platform/apperr"
)

// Lead sources.
const (
	SourceManual = "manual"
	SourceImport = "import"
	SourceForm   = "form"
)

func validSource(source string) bool {
	switch source {
	case SourceManual, SourceImport, SourceForm:
		return true
	}
	return false
}

// ImportRow is one validated row of an import file. Line is the 1-based
// line in the source file, header included.
type ImportRow struct {
	Line  int
	Input CreateLeadInput
}

type ImportError struct {
	Row     int
	Message string
}

type ImportResult struct {
	Imported int
	Failed   int
	Errors   []ImportError
}

func importErrorMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
