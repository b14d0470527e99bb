// Package email delivers transactional mail: task reminders and budget links.
package email

import (
	"context"
	"time"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Content  []byte
	FileName string
	MIMEType string
}

type Sender interface {
	SendTaskReminder(ctx context.Context, toEmail string, r TaskReminder) error
	SendBudgetLink(ctx context.Context, toEmail string, b BudgetLink) error
}

// TaskReminder describes a follow-up task that is about to fall due.
type TaskReminder struct {
	AssigneeName string
	Title        string
	DueAt        time.Time
	TaskURL      string
}

// BudgetLink is the message sent when a budget moves to sent.
type BudgetLink struct {
	RecipientName    string
	OrganizationName string
	BudgetTitle      string
	PublicURL        string
	PDF              *Attachment
}

type NoopSender struct{}

func (NoopSender) SendTaskReminder(context.Context, string, TaskReminder) error { return nil }

func (NoopSender) SendBudgetLink(context.Context, string, BudgetLink) error { return nil }

var (
	_ Sender = NoopSender{}
	_ Sender = (*SMTPSender)(nil)
)
