package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"impactflow/api/internal/config"
)

// Email is a plain-text message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers email. Implementations are best-effort collaborators:
// callers log failures and carry on.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

// NewSender returns an SMTP sender when a host is configured and a log-only
// sender otherwise, so local runs work without a mail account.
func NewSender(cfg config.SMTPConfig, logger zerolog.Logger) Sender {
	if cfg.Host == "" {
		logger.Warn().Msg("smtp host not configured, email delivery disabled")
		return &LogSender{log: logger}
	}
	return &SMTPSender{cfg: cfg}
}

// SMTPSender delivers mail over plain-auth SMTP.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func (s *SMTPSender) Send(ctx context.Context, msg Email) error {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.Body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	// smtp.SendMail has no context support; run it in a goroutine and bail
	// out when the deadline passes so delivery can never wedge a request.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, from, []string{msg.To}, []byte(b.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

// LogSender records messages in the log instead of delivering them.
type LogSender struct {
	log zerolog.Logger
}

func (s *LogSender) Send(_ context.Context, msg Email) error {
	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("email delivery disabled, logging instead")
	return nil
}

// BuildOneTimeCodeEmail builds the verification-code message.
func BuildOneTimeCodeEmail(to, code, expiresIn string) Email {
	var b strings.Builder
	fmt.Fprintf(&b, "Your ImpactFlow verification code is: %s\n\n", code)
	fmt.Fprintf(&b, "This code expires in %s.\n\n", expiresIn)
	b.WriteString("If you did not register, you can safely ignore this email.\n")

	return Email{
		To:      to,
		Subject: "Your ImpactFlow verification code",
		Body:    b.String(),
	}
}

// BuildContactNotification builds the admin notification for a contact-form
// submission.
func BuildContactNotification(adminEmail, name, email, message string) Email {
	var b strings.Builder
	fmt.Fprintf(&b, "New contact form submission\n\n")
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\n\n", name, email)
	fmt.Fprintf(&b, "Message:\n%s\n", message)

	return Email{
		To:      adminEmail,
		Subject: fmt.Sprintf("New contact form submission from %s", name),
		Body:    b.String(),
	}
}
