package email

import (
	"strings"
	"testing"
	"time"
)

func TestRenderTaskReminder(t *testing.T) {
	due := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	html, err := renderTaskReminder(TaskReminder{
		AssigneeName: "Lucía",
		Title:        "Llamar a <Ana>",
		DueAt:        due,
		TaskURL:      "https://crm.example.com/tasks",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Lucía", "Llamar a &lt;Ana&gt;", "10/03/2026 12:30", "https://crm.example.com/tasks"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestRenderBudgetLinkMentionsAttachment(t *testing.T) {
	html, err := renderBudgetLink(BudgetLink{
		RecipientName: "Ana",
		BudgetTitle:   "Bariloche 2026",
		PublicURL:     "https://crm.example.com/p/ana-bariloche-2026",
		PDF:           &Attachment{FileName: "presupuesto.pdf"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Adjuntamos una copia en PDF") {
		t.Errorf("attachment note missing")
	}
	if !strings.Contains(html, "Te enviamos") {
		t.Errorf("fallback sender line missing")
	}
}

func TestNewSenderDisabled(t *testing.T) {
	if _, ok := NewSender(nil).(NoopSender); !ok {
		t.Fatalf("expected noop sender without config")
	}
}
