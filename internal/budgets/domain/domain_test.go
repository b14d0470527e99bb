package domain

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ana Pérez Bariloche 2026", "ana-perez-bariloche-2026"},
		{"  Viaje a Córdoba!!  ", "viaje-a-cordoba"},
		{"Ñandú & Cía", "nandu-cia"},
		{"---", "presupuesto"},
		{"北京", "presupuesto"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugifyTruncates(t *testing.T) {
	got := Slugify(strings.Repeat("ab ", 60))
	if len(got) > maxSlugLength || strings.HasSuffix(got, "-") {
		t.Fatalf("bad truncation %q", got)
	}
}

func TestNextFreeSlug(t *testing.T) {
	if got := NextFreeSlug("ana-bariloche", nil); got != "ana-bariloche" {
		t.Errorf("unused base changed: %q", got)
	}
	got := NextFreeSlug("ana-bariloche", []string{"ana-bariloche", "ana-bariloche-2", "ana-bariloche-4"})
	if got != "ana-bariloche-3" {
		t.Errorf("got %q, want ana-bariloche-3", got)
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("sent"); err != nil {
		t.Fatalf("sent rejected: %v", err)
	}
	if _, err := ParseStatus("paid"); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestMarginConfigRoundTrip(t *testing.T) {
	desc := "<p>Hotel 4 estrellas</p><!--margin-config:{\"baseCost\":1000,\"marginPercent\":15}-->"

	cfg := ExtractMarginConfig(desc)
	if cfg == nil {
		t.Fatalf("margin config not found")
	}
	if cfg.Currency != DefaultCurrency {
		t.Errorf("currency default = %q", cfg.Currency)
	}
	if cfg.FinalPrice() != 1150 {
		t.Errorf("final price = %v", cfg.FinalPrice())
	}

	updated, err := EmbedMarginConfig(desc, MarginConfig{BaseCost: 2000, MarginPercent: 10, Currency: "USD"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if strings.Count(updated, marginPrefix) != 1 {
		t.Fatalf("expected exactly one config comment: %s", updated)
	}
	if !strings.HasPrefix(updated, "<p>Hotel 4 estrellas</p>") {
		t.Errorf("body not preserved: %s", updated)
	}
	again := ExtractMarginConfig(updated)
	if again == nil || again.BaseCost != 2000 || again.Currency != "USD" {
		t.Fatalf("unexpected config %+v", again)
	}
}

func TestExtractMarginConfigIgnoresOtherComments(t *testing.T) {
	if cfg := ExtractMarginConfig("<p>x</p><!-- nota interna -->"); cfg != nil {
		t.Fatalf("expected nil, got %+v", cfg)
	}
	if cfg := ExtractMarginConfig("<!--margin-config:{broken-->"); cfg != nil {
		t.Fatalf("malformed json must be ignored")
	}
}

func TestStripMarginConfig(t *testing.T) {
	got := StripMarginConfig("<p>a</p><!--margin-config:{}--><!-- keep -->")
	if got != "<p>a</p><!-- keep -->" {
		t.Fatalf("got %q", got)
	}
}

func TestMarginValidate(t *testing.T) {
	if err := (MarginConfig{BaseCost: -1}).Validate(); err != ErrInvalidMargin {
		t.Fatalf("negative cost accepted")
	}
	if err := (MarginConfig{BaseCost: 10, MarginPercent: 20}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
