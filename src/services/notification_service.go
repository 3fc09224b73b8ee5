// backend/src/services/notification_service.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/ssnreport/backend/src/config"
	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
)

// NotificationService informs the operations team when the regulator decides
// a pending rectification. Failures are logged and swallowed by callers; a
// missed email never blocks the filing lifecycle.
type NotificationService interface {
	SendRectificationOutcome(cronograma, deliveryKind string, version int, granted bool) error
}

func NewNotificationService() NotificationService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Notification service will default to mock.")
		return &MockNotificationService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing notification service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" || config.Cfg.NotifyEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, SenderEmail or NotifyEmail missing). Falling back to MockNotificationService.")
			return &MockNotificationService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunNotificationService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
			notifyEmail: config.Cfg.NotifyEmail,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" || config.Cfg.NotifyEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockNotificationService.")
			return &MockNotificationService{}
		}
		return &SMTPNotificationService{
			SMTPServer:   config.Cfg.SMTPServer,
			SMTPPort:     config.Cfg.SMTPPort,
			SMTPUser:     config.Cfg.SMTPUser,
			SMTPPassword: config.Cfg.SMTPPassword,
			SenderEmail:  config.Cfg.SenderEmail,
			NotifyEmail:  config.Cfg.NotifyEmail,
		}
	default:
		logger.L.Info("Defaulting to MockNotificationService.")
		return &MockNotificationService{}
	}
}

func outcomeSubject(cronograma, deliveryKind string, granted bool) string {
	verdict := "rectificación aprobada"
	if !granted {
		verdict = "rectificación rechazada"
	}
	return fmt.Sprintf("SSN %s %s: %s", deliveryKindLabel(deliveryKind), cronograma, verdict)
}

func outcomeBody(cronograma, deliveryKind string, version int, granted bool) string {
	if granted {
		return fmt.Sprintf(`La SSN aprobó la rectificación de la entrega %s del período %s (versión %d).

Ya puede abrir una nueva versión, cargar la planilla corregida y volver a presentar.`,
			deliveryKindLabel(deliveryKind), cronograma, version)
	}
	return fmt.Sprintf(`La SSN rechazó la rectificación de la entrega %s del período %s (versión %d).

La presentación queda en su estado original. Revise el detalle de la respuesta en el sistema.`,
		deliveryKindLabel(deliveryKind), cronograma, version)
}

func deliveryKindLabel(deliveryKind string) string {
	if deliveryKind == models.KindMonthly {
		return "mensual"
	}
	return "semanal"
}

type SMTPNotificationService struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
	NotifyEmail  string
}

func (s *SMTPNotificationService) SendRectificationOutcome(cronograma, deliveryKind string, version int, granted bool) error {
	subject := outcomeSubject(cronograma, deliveryKind, granted)
	body := outcomeBody(cronograma, deliveryKind, version, granted)

	header := make(map[string]string)
	header["From"] = s.SenderEmail
	header["To"] = s.NotifyEmail
	header["Subject"] = subject
	header["MIME-version"] = "1.0"
	header["Content-Type"] = "text/plain; charset=\"UTF-8\""
	message := ""
	for k, v := range header {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + body

	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.SenderEmail, []string{s.NotifyEmail}, []byte(message)); err != nil {
		logger.L.Error("Failed to send rectification outcome via SMTP", "error", err, "to", s.NotifyEmail)
		return fmt.Errorf("failed to send rectification outcome via SMTP: %w", err)
	}
	logger.L.Info("Rectification outcome sent successfully via SMTP", "to", s.NotifyEmail, "cronograma", cronograma)
	return nil
}

type MailgunNotificationService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
	notifyEmail string
}

func (s *MailgunNotificationService) SendRectificationOutcome(cronograma, deliveryKind string, version int, granted bool) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	subject := outcomeSubject(cronograma, deliveryKind, granted)
	body := outcomeBody(cronograma, deliveryKind, version, granted)

	message := s.mg.NewMessage(from, subject, body, s.notifyEmail)
	message.AddTag("rectification-outcome")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send rectification outcome via Mailgun", "error", err, "to", s.notifyEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Rectification outcome sent successfully via Mailgun", "to", s.notifyEmail, "id", id, "mailgunResp", resp)
	return nil
}

type MockNotificationService struct{}

func (m *MockNotificationService) SendRectificationOutcome(cronograma, deliveryKind string, version int, granted bool) error {
	logger.L.Info("MockNotificationService: Would send rectification outcome email.",
		"cronograma", cronograma, "deliveryKind", deliveryKind, "version", version, "granted", granted)
	return nil
}
