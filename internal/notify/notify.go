// Package notify sends pipeline outcome notifications by email, grounded on
// bass/notification.py's send_email.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// EmailSpec is one email notification: recipients, subject, and body. The
// subject and body may carry PIPELINE_NAME and TRACEID template variables,
// which Send resolves before sending.
type EmailSpec struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Event selects which half of a Config fires, matching a pipeline's
// terminal status.
type Event string

const (
	EventSuccess Event = "onSuccess"
	EventFailure Event = "onFailure"
)

// Config is a pipeline's notifications descriptor, matching the pipelines
// file's `notifications: {onSuccess?: {email}, onFailure?: {email}}` shape.
type Config struct {
	OnSuccess *Target `json:"onSuccess,omitempty"`
	OnFailure *Target `json:"onFailure,omitempty"`
}

// Target is one event's notification channels. Email is the only channel
// this fabric implements.
type Target struct {
	Email *EmailSpec `json:"email,omitempty"`
}

// ForEvent returns the Target configured for evt, or nil if none is set.
func (c *Config) ForEvent(evt Event) *Target {
	if c == nil {
		return nil
	}
	switch evt {
	case EventSuccess:
		return c.OnSuccess
	case EventFailure:
		return c.OnFailure
	default:
		return nil
	}
}

// ResolveTemplate resolves PIPELINE_NAME and TRACEID placeholders in an
// EmailSpec's subject and body.
func ResolveTemplate(text string, pipelineName, traceID string) string {
	replacer := strings.NewReplacer(
		"PIPELINE_NAME", pipelineName,
		"TRACEID", traceID,
	)
	return replacer.Replace(text)
}

// Mailer sends resolved email notifications via SMTP.
type Mailer struct {
	// Addr is the SMTP server address, e.g. "localhost:25".
	Addr string
	// From is the envelope and header sender address.
	From string
}

// NewMailer returns a Mailer that dials addr for every Send call.
func NewMailer(addr, from string) *Mailer {
	return &Mailer{Addr: addr, From: from}
}

// Send delivers spec as a plaintext email after resolving its template
// variables against pipelineName and traceID.
func (m *Mailer) Send(spec EmailSpec, pipelineName, traceID string) error {
	subject := ResolveTemplate(spec.Subject, pipelineName, traceID)
	body := ResolveTemplate(spec.Body, pipelineName, traceID)

	msg := buildMessage(m.From, spec.To, subject, body)
	return smtp.SendMail(m.Addr, nil, m.From, spec.To, msg)
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
