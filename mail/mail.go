// Package mail delivers outbound messages over SMTP and holds the templates
// for everything the auth flows send.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	kd "github.com/kumori-disk/kumori-disk"
)

// ConfirmationLink builds the link embedded in the sign-up confirmation
// message. The frontend at domain reads the hash query parameter and calls
// the confirm operation with it.
func ConfirmationLink(protocol, domain, hash string) string {
	return fmt.Sprintf("%s://%s?hash=%s", protocol, domain, hash)
}

// ConfirmationMail is the sign-up verification message.
func ConfirmationMail(receiver, link string) kd.SendMail {
	return kd.SendMail{
		To:      receiver,
		Subject: "Account verification for Kumori-Disk",
		Text:    fmt.Sprintf("You've signed up for Kumori-Disk cloud storage, please follow the link to verify your email address - %s", link),
	}
}

// GeneratedPasswordMail tells a user who signed up through GitHub the
// password generated for their account, so they can also sign in locally.
func GeneratedPasswordMail(receiver, password string) kd.SendMail {
	return kd.SendMail{
		To:      receiver,
		Subject: "Your Kumori-Disk account password",
		Text:    fmt.Sprintf("Your Kumori-Disk account has been created via GitHub. Use this generated password to sign in with your email - %s", password),
	}
}

// SMTPMailer implements kumoridisk.Mailer over an SMTP relay.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// SMTPConfig carries relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTPMailer connects lazily; dial errors surface on Send.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, mail kd.SendMail) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(mail.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(mail.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, mail.Text)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// ConsoleMailer logs messages instead of delivering them. Used in
// development when no SMTP relay is configured.
type ConsoleMailer struct {
	Logger *slog.Logger
}

func (m *ConsoleMailer) Send(ctx context.Context, mail kd.SendMail) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "outbound mail", "to", mail.To, "subject", mail.Subject, "text", mail.Text)
	return nil
}
