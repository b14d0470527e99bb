package render

import (
	"strings"
	"testing"
	"time"
)

func TestBuildAndRenderDefault(t *testing.T) {
	data, err := Build(Input{
		Title:         "Bariloche 2026",
		Description:   `<p>Hotel <b>Llao Llao</b></p><!--margin-config:{"baseCost":100000,"marginPercent":20}-->`,
		RecipientName: "Ana Pérez",
		Status:        "not_sent",
		Version:       3,
		PublicURL:     "https://crm.example.com/p/ana-perez-bariloche-2026",
		UpdatedAt:     time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.HasPrefix(string(data.QRCode), "data:image/png;base64,") {
		t.Fatalf("qr code not encoded as data uri")
	}

	out, err := HTML("", data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(out)
	for _, want := range []string{
		"<p>Hotel <b>Llao Llao</b></p>",
		"Precio final: ARS 120.000,00",
		"Para Ana Pérez",
		"05/01/2026",
		"v3",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in output", want)
		}
	}
	if strings.Contains(html, "margin-config") {
		t.Errorf("margin comment leaked into the document")
	}
}

func TestRenderCustomTemplate(t *testing.T) {
	out, err := HTML(`<h2>{{.Title}}</h2><p>{{.RecipientName}}</p>`, Data{Title: "Salta", RecipientName: "<script>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(out) != "<h2>Salta</h2><p>&lt;script&gt;</p>" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRenderRejectsBrokenTemplate(t *testing.T) {
	if _, err := HTML(`{{.Title`, Data{}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "ARS 0,00"},
		{999.5, "ARS 999,50"},
		{1234567.891, "ARS 1.234.567,89"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.amount, "ARS"); got != tt.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
