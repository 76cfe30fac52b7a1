package email

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

func TestNewService_WithoutHostLogsOnly(t *testing.T) {
	svc := NewService(config.SMTPConfig{}, logger.NewNop())

	_, isLog := svc.(*logService)
	require.True(t, isLog)
	assert.NoError(t, svc.Send(context.Background(), "jane@clinic.test", "hi", "body"))
}

func TestNewService_WithHostUsesSMTP(t *testing.T) {
	svc := NewService(config.SMTPConfig{Host: "smtp.clinic.test", Port: 587, From: "no-reply@clinic.test"}, logger.NewNop())

	smtp, ok := svc.(*smtpService)
	require.True(t, ok)
	assert.Equal(t, "smtp.clinic.test", smtp.dialer.Host)
	assert.Equal(t, 587, smtp.dialer.Port)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Send(ctx, "jane@clinic.test", "hi", "body"), context.Canceled)
}

func TestBookingConfirmation(t *testing.T) {
	subject, body := BookingConfirmation("Jane Doe", "Dr Gregory House", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, "Your appointment is confirmed", subject)
	assert.Contains(t, body, "Hello Jane Doe")
	assert.Contains(t, body, "Dr Gregory House")
	assert.Contains(t, body, "Wednesday 10 January 2024 at 09:00")
}
