// Package sender отправляет письма о вытеснении сессий.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/smtp"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// SenderService потребляет события вытеснения и отправляет письма по SMTP.
type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.TransportInterface, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// SendEvictionNotice отправляет письмо о том, что сессия устройства была
// вытеснена новым входом. Письмо информационное: само устройство узнает о
// вытеснении опросом, не из письма.
func (s *SenderService) SendEvictionNotice(body []byte) error {
	var event models.EvictionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	if event.Email == "" {
		s.log.Warn("eviction event without email, skipping",
			slog.String("principal_uid", event.PrincipalUID))
		return nil
	}

	subject := "Выполнен вход с нового устройства"
	bodyText := fmt.Sprintf("Здравствуйте, %s!\n\n"+
		"В ваш аккаунт выполнен вход с нового устройства, и сессия на устройстве %q была завершена.\n\n"+
		"Если это были не вы, смените пароль.",
		event.Username, event.DeviceInfo)

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", s.transport.GetSMTPUser()),
		fmt.Sprintf("To: %s", event.Email),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			s.log.Error("failed to close SMTP client", sl.Err(closeErr))
		}
	}()

	if err = client.Mail(s.transport.GetSMTPUser()); err != nil {
		return fmt.Errorf("failed to set mail sender: %w", err)
	}
	if err = client.Rcpt(event.Email); err != nil {
		return fmt.Errorf("failed to set recipient %s: %w", event.Email, err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get write closer: %w", err)
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("failed to close write closer: %w", err)
	}

	s.log.Info("eviction notice sent", slog.String("email", event.Email))
	return nil
}
