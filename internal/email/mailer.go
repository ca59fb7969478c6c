// internal/email/mailer.go
package email

import (
	"context"
	"fmt"

	"gymhub.np/internal/config"
)

// Message is one outgoing email. Text is the plain-text alternative of HTML.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the mailer selected by cfg.Email.Provider.
func New(ctx context.Context, cfg *config.Config) (Mailer, error) {
	switch cfg.Email.Provider {
	case "", "smtp":
		return NewSMTPMailer(cfg.Email, cfg.AppEnv), nil
	case "ses":
		return NewSESMailer(ctx, cfg.Email)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}
