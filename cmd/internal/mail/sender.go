package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/asifkhan2513/secure-auth/cmd/security/token"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipient = errors.New("mail: empty recipient")

// SMTPSender sends through an SMTP relay with gomail.
type SMTPSender struct {
	from string
	send func(...*gomail.Message) error
}

// NewSMTPSender builds a sender from cfg. It does not dial.
func NewSMTPSender(cfg Config) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	return &SMTPSender{
		from: cfg.From,
		send: d.DialAndSend,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	// gomail has no context support. A stalled session is abandoned when ctx
	// ends; its goroutine exits once the server or the OS gives up on it.
	errc := make(chan error, 1)
	go func() { errc <- s.send(m) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("mail: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail: send: %w", ctx.Err())
	}
}

// LogSender records messages in the log instead of sending them. Neither the
// body nor the address is logged; the recipient appears as a fingerprint.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	l := s.Log
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "mail.send.skipped", "email_fp", token.Fingerprint(msg.To), "subject", msg.Subject, "reason", "smtp not configured")
	return nil
}
