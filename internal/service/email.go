package service

import (
	"context"
	"fmt"

	"collective-backend/internal/config"
	"collective-backend/internal/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridEmailService struct {
	apiKey     string
	fromEmail  string
	fromName   string
	adminEmail string
}

// NewEmailService builds the SendGrid-backed notifier. Without an API key
// every send is a logged no-op so the pipeline works in deployments that
// skip email.
func NewEmailService(cfg config.SendGridConfig) EmailService {
	return &sendGridEmailService{
		apiKey:     cfg.APIKey,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		adminEmail: cfg.AdminEmail,
	}
}

func (s *sendGridEmailService) SendMigrationWelcome(ctx context.Context, email, pseudonym, cohortLabel string) error {
	subject := "Your collective account is ready"
	body := fmt.Sprintf("Hello %s,\n\nYour membership in %s has been mirrored to the publishing platform. You can now sign in with the credentials sent separately.\n\nThe Collective Team", pseudonym, cohortLabel)
	return s.send(email, pseudonym, subject, body)
}

func (s *sendGridEmailService) SendSyncExhaustedAlert(ctx context.Context, memberID int32, pseudonym, lastError string) error {
	if s.adminEmail == "" {
		return nil
	}
	subject := fmt.Sprintf("Sync exhausted for member %d", memberID)
	body := fmt.Sprintf("Member %d (%s) failed to sync to the registrar and has exhausted its retry budget.\n\nLast error:\n%s\n\nManual intervention required.", memberID, pseudonym, lastError)
	return s.send(s.adminEmail, "Operations", subject, body)
}

func (s *sendGridEmailService) send(to, toName, subject, plainText string) error {
	if s.apiKey == "" {
		logger.Debug("SendGrid not configured, skipping email", "to", to, "subject", subject)
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(toName, to)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, "")

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}
