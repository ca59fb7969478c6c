// internal/email/smtp.go
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"gymhub.np/internal/config"
)

const mixedBoundary = "gymhub-alt-boundary"

type SMTPMailer struct {
	cfg    config.EmailConfig
	appEnv string
}

func NewSMTPMailer(cfg config.EmailConfig, appEnv string) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, appEnv: appEnv}
}

// Send delivers msg. Without an SMTP host it logs the message instead, which is
// only allowed in development.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.SMTPhost == "" || m.cfg.Sender == "" {
		slog.Warn("SMTP host or sender not configured, pseudo-sending email", "to", msg.To, "subject", msg.Subject)
		slog.Debug("Pseudo-sent email body", "text", msg.Text)
		if m.appEnv != "development" {
			return fmt.Errorf("smtp host or sender is not configured")
		}
		return nil
	}

	addr := net.JoinHostPort(m.cfg.SMTPhost, fmt.Sprint(m.cfg.SMTPport))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	client, err := smtp.NewClient(conn, m.cfg.SMTPhost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.SMTPhost}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.cfg.SMTPuser != "" {
		auth := smtp.PlainAuth("", m.cfg.SMTPuser, m.cfg.SMTPpassword, m.cfg.SMTPhost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(m.cfg.Sender); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(buildMessage(m.cfg.Sender, msg)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp finish DATA: %w", err)
	}
	if err := client.Quit(); err != nil {
		slog.Warn("SMTP QUIT failed", "error", err)
	}

	slog.Info("Email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// buildMessage renders msg as a multipart/alternative MIME message.
func buildMessage(from string, msg Message) []byte {
	headers := [][2]string{
		{"From", from},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"MIME-Version", "1.0"},
	}

	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}

	if msg.HTML == "" {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(msg.Text)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mixedBoundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n", mixedBoundary, msg.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s\r\n", mixedBoundary, msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", mixedBoundary)
	return []byte(b.String())
}
