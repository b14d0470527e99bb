package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type taskReminderEmailData struct {
	baseEmailData
	AssigneeName string
	TaskTitle    string
	DueAt        string
}

type budgetLinkEmailData struct {
	baseEmailData
	RecipientName    string
	OrganizationName string
	BudgetTitle      string
	HasAttachment    bool
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

var argentina = time.FixedZone("ART", -3*60*60)

func formatDueAt(t time.Time) string {
	return t.In(argentina).Format("02/01/2006 15:04")
}
