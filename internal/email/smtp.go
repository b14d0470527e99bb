package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers the rendered templates over SMTP via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// Config is the subset of application settings the sender reads.
type Config interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// NewSender returns an SMTP sender, or a NoopSender when mail is disabled.
func NewSender(cfg Config) Sender {
	if cfg == nil || !cfg.IsEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		if err := msg.AttachReader(att.FileName, bytes.NewReader(att.Content)); err != nil {
			return fmt.Errorf("smtp attach %s: %w", att.FileName, err)
		}
	}

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendTaskReminder(ctx context.Context, toEmail string, r TaskReminder) error {
	content, err := renderTaskReminder(r)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectTaskReminderFmt, r.Title), content)
}

func (s *SMTPSender) SendBudgetLink(ctx context.Context, toEmail string, b BudgetLink) error {
	content, err := renderBudgetLink(b)
	if err != nil {
		return err
	}
	var attachments []Attachment
	if b.PDF != nil {
		attachments = append(attachments, *b.PDF)
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectBudgetLinkFmt, b.BudgetTitle), content, attachments...)
}

func renderTaskReminder(r TaskReminder) (string, error) {
	return renderEmailTemplate("task_reminder.html", taskReminderEmailData{
		baseEmailData: baseEmailData{
			Title:    "Recordatorio de tarea",
			Heading:  "Tenés una tarea por vencer",
			CTALabel: "Ver tarea",
			CTAURL:   r.TaskURL,
		},
		AssigneeName: r.AssigneeName,
		TaskTitle:    r.Title,
		DueAt:        formatDueAt(r.DueAt),
	})
}

func renderBudgetLink(b BudgetLink) (string, error) {
	return renderEmailTemplate("budget_link.html", budgetLinkEmailData{
		baseEmailData: baseEmailData{
			Title:    b.BudgetTitle,
			Heading:  "Tu presupuesto está listo",
			CTALabel: "Ver presupuesto",
			CTAURL:   b.PublicURL,
		},
		RecipientName:    b.RecipientName,
		OrganizationName: b.OrganizationName,
		BudgetTitle:      b.BudgetTitle,
		HasAttachment:    b.PDF != nil,
	})
}
