// Package notify sends owner notifications by email.
package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"finledger/internal/core"

	"gopkg.in/gomail.v2"
)

// Sender delivers one prepared message.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer renders ledger events into emails.
type Mailer struct {
	from   string
	sender Sender
}

func NewMailer(host string, port int, user, pass, from string) *Mailer {
	return &Mailer{
		from:   from,
		sender: gomail.NewDialer(host, port, user, pass),
	}
}

// NewMailerWithSender is used by tests to capture messages.
func NewMailerWithSender(from string, s Sender) *Mailer {
	return &Mailer{from: from, sender: s}
}

var bodyTemplates = map[core.EventType]*template.Template{
	core.EventGoalCompleted: template.Must(template.New("goal").Parse(
		`<p>Congratulations! Your savings goal <b>{{.Label}}</b> reached its target of {{.Amount}}.</p>`)),
	core.EventBillSettled: template.Must(template.New("bill").Parse(
		`<p>Everyone has paid their share of <b>{{.Label}}</b>. The bill of {{.Amount}} is settled.</p>`)),
	core.EventBudgetThreshold: template.Must(template.New("budget").Parse(
		`<p>You have used {{.Percent}}% of your {{.Label}} budget. Spent so far: {{.Amount}}.</p>`)),
	core.EventUserRegistered: template.Must(template.New("welcome").Parse(
		`<p>Welcome to finledger{{if .Label}}, {{.Label}}{{end}}!</p>`)),
}

var subjects = map[core.EventType]string{
	core.EventGoalCompleted:   "Savings goal completed",
	core.EventBillSettled:     "Split bill settled",
	core.EventBudgetThreshold: "Budget alert",
	core.EventUserRegistered:  "Welcome to finledger",
}

// Notifies reports whether an event type produces an email.
func Notifies(t core.EventType) bool {
	_, ok := bodyTemplates[t]
	return ok
}

type view struct {
	Label   string
	Amount  string
	Percent string
}

// Render builds the subject and HTML body for an event.
func Render(event core.LedgerEvent) (subject, body string, err error) {
	tmpl, ok := bodyTemplates[event.Type]
	if !ok {
		return "", "", fmt.Errorf("%w: no email for event type %s", core.ErrInvalidInput, event.Type)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, view{
		Label:   event.Label,
		Amount:  event.Amount.StringFixed(2),
		Percent: event.Percent.StringFixed(2),
	}); err != nil {
		return "", "", fmt.Errorf("render %s email: %w", event.Type, err)
	}
	return subjects[event.Type], b.String(), nil
}

// Send emails the event to one recipient.
func (m *Mailer) Send(ctx context.Context, to string, event core.LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body, err := Render(event)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
