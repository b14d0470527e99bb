// Package render turns a budget into a standalone HTML document.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"travel_crm_backend/internal/budgets/domain"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 180

// Data is what a budget template can reference.
type Data struct {
	Title            string
	Description      template.HTML
	RecipientName    string
	OrganizationName string
	Status           string
	Version          int
	PublicURL        string
	QRCode           template.URL
	Margin           *domain.MarginConfig
	FinalPrice       string
	Date             string
}

// Input is the budget as stored plus the resolved names.
type Input struct {
	Title            string
	Description      string
	RecipientName    string
	OrganizationName string
	Status           string
	Version          int
	PublicURL        string
	UpdatedAt        time.Time
}

// Build resolves the template data: strips the margin comment from the
// description, computes the final price and encodes the QR code.
func Build(in Input) (Data, error) {
	d := Data{
		Title:            in.Title,
		Description:      template.HTML(domain.StripMarginConfig(in.Description)),
		RecipientName:    in.RecipientName,
		OrganizationName: in.OrganizationName,
		Status:           in.Status,
		Version:          in.Version,
		PublicURL:        in.PublicURL,
		Date:             in.UpdatedAt.Format("02/01/2006"),
	}
	if m := domain.ExtractMarginConfig(in.Description); m != nil {
		d.Margin = m
		d.FinalPrice = FormatMoney(m.FinalPrice(), m.Currency)
	}
	if in.PublicURL != "" {
		png, err := qrcode.Encode(in.PublicURL, qrcode.Medium, qrSize)
		if err != nil {
			return Data{}, fmt.Errorf("encode qr: %w", err)
		}
		d.QRCode = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	}
	return d, nil
}

// Parse compiles a stored template body.
func Parse(body string) (*template.Template, error) {
	return template.New("budget").Option("missingkey=zero").Parse(body)
}

// HTML renders data with body, or with the built-in layout when body is empty.
func HTML(body string, data Data) ([]byte, error) {
	tmpl := defaultTemplate
	if strings.TrimSpace(body) != "" {
		var err error
		if tmpl, err = Parse(body); err != nil {
			return nil, fmt.Errorf("parse budget template: %w", err)
		}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute budget template: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatMoney prints amount with "." thousands and "," decimals, the way
// prices are written in Argentina.
func FormatMoney(amount float64, currency string) string {
	cents := int64(amount*100 + 0.5)
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s %s,%02d", currency, b.String(), cents%100)
}

var defaultTemplate = template.Must(Parse(defaultLayout))

const defaultLayout = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; color: #111827; margin: 0; }
header { display: flex; justify-content: space-between; align-items: center; border-bottom: 2px solid #0f766e; padding-bottom: 12px; }
h1 { font-size: 22px; margin: 0; }
.meta { color: #4b5563; font-size: 13px; }
.price { margin-top: 24px; font-size: 20px; font-weight: bold; }
.qr { text-align: right; }
.qr p { font-size: 11px; color: #6b7280; margin: 4px 0 0; }
</style>
</head>
<body>
<header>
<div>
<h1>{{.Title}}</h1>
<div class="meta">{{if .OrganizationName}}{{.OrganizationName}} · {{end}}{{if .RecipientName}}Para {{.RecipientName}} · {{end}}{{.Date}} · v{{.Version}}</div>
</div>
{{if .QRCode}}<div class="qr"><img src="{{.QRCode}}" width="120" height="120" alt="QR"><p>{{.PublicURL}}</p></div>{{end}}
</header>
<main>
{{.Description}}
{{if .Margin}}<div class="price">Precio final: {{.FinalPrice}}</div>{{end}}
</main>
</body>
</html>
`
