package database

import (
	"errors"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog/log"
)

// Mailer delivers account confirmation links.
type Mailer interface {
	SendConfirmation(to, link string) error
}

// LogMailer writes the link to the log instead of sending it. Used when
// SMTP is not configured.
type LogMailer struct{}

func (LogMailer) SendConfirmation(to, link string) error {
	log.Info().Str("to", to).Str("link", link).Msg("confirmation link (SMTP not configured)")
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Configured reports whether enough settings are present to send mail.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Port != "" && c.Username != "" && c.Password != ""
}

type SMTPMailer struct {
	config SMTPConfig
}

func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

func (m *SMTPMailer) SendConfirmation(to, link string) error {
	if !m.config.Configured() {
		return errors.New("SMTP not fully configured")
	}

	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)

	from := m.config.From
	if from == "" {
		from = m.config.Username
	}

	subject := "Confirm your Task Tracker account"
	body := fmt.Sprintf("Click the link below to confirm your account:\n\n%s\n\nIf you didn't sign up, you can safely ignore this email.", link)
	message := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\n\n%s", from, to, subject, body)

	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
