package storage

import (
	"testing"

	"github.com/google/uuid"
)

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		ok          bool
	}{
		{"application/pdf", true},
		{"text/html; charset=utf-8", true},
		{"APPLICATION/PDF", true},
		{"image/png", false},
		{"", false},
	}
	for _, tt := range tests {
		err := ValidateContentType(tt.contentType)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateContentType(%q) err=%v, want ok=%v", tt.contentType, err, tt.ok)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := validateFileSize(0, 10); err == nil {
		t.Errorf("empty file must be rejected")
	}
	if err := validateFileSize(11, 10); err == nil {
		t.Errorf("oversized file must be rejected")
	}
	if err := validateFileSize(10, 10); err != nil {
		t.Errorf("file at the limit rejected: %v", err)
	}
}

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0")
	got := objectKey("org-1/budgets", "presupuesto v2.pdf", id)
	want := "org-1/budgets/presupuesto v2_0f1e2d3c.pdf"
	if got != want {
		t.Fatalf("objectKey = %q, want %q", got, want)
	}
}
