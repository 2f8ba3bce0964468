package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/bizflow/backend/internal/config"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConfigured   = errors.New("email service not configured")
	ErrUnknownTemplate = errors.New("unknown email template")
)

// sendFunc matches smtp.SendMail
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService handles sending emails
type EmailService struct {
	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromEmail    string
	send         sendFunc
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.SMTPConfig) *EmailService {
	return &EmailService{
		smtpHost:     cfg.Host,
		smtpPort:     cfg.Port,
		smtpUsername: cfg.Username,
		smtpPassword: cfg.Password,
		fromEmail:    cfg.FromEmail,
		send:         smtp.SendMail,
	}
}

// Configured reports whether SMTP credentials are present
func (s *EmailService) Configured() bool {
	return s.smtpHost != "" && s.smtpPort != "" && s.smtpUsername != "" && s.smtpPassword != ""
}

// TemplateData is what billing templates render from
type TemplateData struct {
	OwnerName    string
	BusinessName string
	PlanName     string
	Amount       string
	Currency     string
	Details      map[string]interface{}
}

// SendBillingEmail renders the named billing template and sends it
func (s *EmailService) SendBillingEmail(toEmail, name string, data TemplateData) error {
	subject, body, err := Render(name, data)
	if err != nil {
		return err
	}
	return s.sendEmail(toEmail, subject, body)
}

// Render returns the subject and HTML body for a billing template
func Render(name string, data TemplateData) (string, string, error) {
	tpl, ok := billingTemplates[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	if data.Details == nil {
		data.Details = map[string]interface{}{}
	}

	var content bytes.Buffer
	if err := tpl.body.Execute(&content, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := layout.Execute(&buf, struct {
		TemplateData
		Body template.HTML
	}{data, template.HTML(content.String())}); err != nil {
		return "", "", fmt.Errorf("failed to render layout: %w", err)
	}

	return tpl.subject, buf.String(), nil
}

// sendEmail sends an email with HTML content
func (s *EmailService) sendEmail(toEmail, subject, htmlBody string) error {
	if !s.Configured() {
		log.Warn().Msg("email service not configured properly, check SMTP settings")
		return ErrNotConfigured
	}

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	from := fmt.Sprintf("From: BizFlow <%s>\n", s.fromEmail)
	to := fmt.Sprintf("To: %s\n", toEmail)
	subject = fmt.Sprintf("Subject: %s\n", subject)

	message := []byte(from + to + subject + mime + htmlBody)

	auth := smtp.PlainAuth("", s.smtpUsername, s.smtpPassword, s.smtpHost)
	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)

	return s.send(addr, auth, s.fromEmail, []string{toEmail}, message)
}
