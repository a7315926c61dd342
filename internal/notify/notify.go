// Package notify sends the lifecycle emails that accompany status changes.
// Delivery is best-effort: the case pipeline never fails because an email
// did not go out.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	pstrings "kyc-core/pkg/platform/strings"
)

// Message is one outbound notification.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Notifier delivers lifecycle messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPNotifier sends plain-text mail over SMTP.
type SMTPNotifier struct {
	config Config
	server string
	auth   smtp.Auth
	log    *slog.Logger
}

func NewSMTP(config Config, log *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
		log:    log,
	}
}

func (n *SMTPNotifier) configured() bool {
	return n.config.Host != "" && n.config.Port != "" && n.config.From != ""
}

func (n *SMTPNotifier) Send(_ context.Context, msg Message) error {
	if !n.configured() {
		return fmt.Errorf("smtp not configured")
	}
	to := pstrings.DedupeAndTrimLower(msg.To)
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	from := n.config.From
	if n.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", n.config.FromName, n.config.From)
	}
	payload := []byte(fmt.Sprintf(
		"To: %s\r\nFrom: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		strings.Join(to, ", "), from, msg.Subject, msg.Body))

	return smtp.SendMail(n.server, n.auth, n.config.From, to, payload)
}

// Noop discards every message. Used when no SMTP is configured.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }
