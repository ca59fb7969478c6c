// internal/email/templates.go
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Template names.
const (
	TemplateActivated     = "subscription_activated.html"
	TemplateExpiringSoon  = "expiring_soon.html"
	TemplateExpired       = "expired.html"
	TemplatePasswordReset = "password_reset.html"
)

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
