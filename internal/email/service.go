package email

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

type Service interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

// NewService returns an SMTP sender, or a logging sender when no host is set.
func NewService(cfg config.SMTPConfig, log *logger.Logger) Service {
	if cfg.Host == "" {
		return &logService{logger: log}
	}
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

type logService struct {
	logger *logger.Logger
}

func (s *logService) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("SMTP disabled, mail not sent", "to", to, "subject", subject)
	return nil
}

func BookingConfirmation(patientName, doctorName string, at time.Time) (subject, body string) {
	subject = "Your appointment is confirmed"
	body = fmt.Sprintf(
		"Hello %s,\n\nYour appointment with %s is booked for %s at %s.\n\nSee you soon.\n",
		patientName, doctorName, at.Format("Monday 2 January 2006"), at.Format("15:04"),
	)
	return subject, body
}

func PaymentReceipt(patientName, doctorName string, at, paidAt time.Time) (subject, body string) {
	subject = "Payment received"
	body = fmt.Sprintf(
		"Hello %s,\n\nWe received your payment on %s for the appointment with %s on %s.\n",
		patientName, paidAt.Format("2006-01-02 15:04"), doctorName, at.Format("2006-01-02 15:04"),
	)
	return subject, body
}
