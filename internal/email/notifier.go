// internal/email/notifier.go
package email

import (
	"context"
	"fmt"
	"strings"

	"gymhub.np/internal/models"
)

const dateLayout = "2 January 2006"

// Notifier renders member notifications and hands them to a Mailer.
type Notifier struct {
	mailer   Mailer
	siteName string
	baseURL  string
}

func NewNotifier(mailer Mailer, siteName, baseURL string) *Notifier {
	return &Notifier{mailer: mailer, siteName: siteName, baseURL: strings.TrimRight(baseURL, "/")}
}

type subscriptionData struct {
	SiteName     string
	Name         string
	PlanName     string
	Amount       string
	ReferenceID  string
	EndDate      string
	DashboardURL string
	RenewURL     string
}

func (n *Notifier) subscriptionData(name string, sub models.UserSubscription) subscriptionData {
	if name == "" {
		name = "member"
	}
	return subscriptionData{
		SiteName:     n.siteName,
		Name:         name,
		PlanName:     sub.PlanName,
		Amount:       sub.Amount.StringFixed(2),
		ReferenceID:  sub.ReferenceID,
		EndDate:      sub.EndDate.Format(dateLayout),
		DashboardURL: n.baseURL + "/dashboard",
		RenewURL:     n.baseURL + "/membership",
	}
}

func (n *Notifier) send(ctx context.Context, to, subject, tpl string, data any, text string) error {
	html, err := render(tpl, data)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{To: to, Subject: subject, HTML: html, Text: text})
}

// SendActivated confirms a verified checkout.
func (n *Notifier) SendActivated(ctx context.Context, to, name string, sub models.UserSubscription) error {
	d := n.subscriptionData(name, sub)
	text := fmt.Sprintf("Hi %s,\n\nYour %s membership is active until %s.\nTransaction: %s\nAmount: Rs. %s\n",
		d.Name, d.PlanName, d.EndDate, d.ReferenceID, d.Amount)
	return n.send(ctx, to, fmt.Sprintf("%s: your %s is active", n.siteName, sub.PlanName), TemplateActivated, d, text)
}

func (n *Notifier) SendExpiringSoon(ctx context.Context, owner models.SubscriptionOwner) error {
	d := n.subscriptionData(owner.Name, owner.Subscription)
	text := fmt.Sprintf("Hi %s,\n\nYour %s membership ends on %s. Renew at %s\n", d.Name, d.PlanName, d.EndDate, d.RenewURL)
	return n.send(ctx, owner.Email, fmt.Sprintf("%s: your membership ends on %s", n.siteName, d.EndDate), TemplateExpiringSoon, d, text)
}

func (n *Notifier) SendExpired(ctx context.Context, owner models.SubscriptionOwner) error {
	d := n.subscriptionData(owner.Name, owner.Subscription)
	text := fmt.Sprintf("Hi %s,\n\nYour %s membership ended on %s. Choose a plan at %s\n", d.Name, d.PlanName, d.EndDate, d.RenewURL)
	return n.send(ctx, owner.Email, fmt.Sprintf("%s: your membership has expired", n.siteName), TemplateExpired, d, text)
}

// SendPasswordReset emails the one-time reset link for rawToken.
func (n *Notifier) SendPasswordReset(ctx context.Context, to, name, rawToken string) error {
	if name == "" {
		name = "member"
	}
	link := n.baseURL + "/reset-password?token=" + rawToken
	data := struct {
		SiteName, Name, ResetURL string
	}{n.siteName, name, link}
	text := fmt.Sprintf("Hi %s,\n\nReset your password within one hour: %s\n", name, link)
	return n.send(ctx, to, n.siteName+": reset your password", TemplatePasswordReset, data, text)
}
