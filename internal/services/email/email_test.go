package email

import (
	"net/smtp"
	"testing"

	"github.com/bizflow/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAllTemplates(t *testing.T) {
	data := TemplateData{
		OwnerName:    "Ana",
		BusinessName: "Salon Aurora",
		PlanName:     "Pro Monthly",
		Amount:       "49.90",
		Currency:     "COP",
		Details: map[string]interface{}{
			"attempt":         2,
			"max_attempts":    3,
			"next_retry_date": "2026-03-14T12:00:00Z",
			"reason":          "Payment declined by the gateway",
			"brand":           "VISA",
			"last_four":       "4242",
			"days_left":       3,
		},
	}

	for name := range billingTemplates {
		t.Run(name, func(t *testing.T) {
			subject, body, err := Render(name, data)
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.Contains(t, body, "Hello Ana")
			assert.Contains(t, body, "BizFlow")
		})
	}
}

func TestRenderRetryDetails(t *testing.T) {
	_, body, err := Render("payment_failed_retry", TemplateData{
		BusinessName: "Salon Aurora",
		Amount:       "49.90",
		Currency:     "COP",
		Details: map[string]interface{}{
			"attempt":         1,
			"max_attempts":    3,
			"next_retry_date": "2026-03-12",
			"reason":          "insufficient funds",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, body, "attempt 1 of 3")
	assert.Contains(t, body, "2026-03-12")
	assert.Contains(t, body, "49.90 COP")
}

func TestRenderEscapesInput(t *testing.T) {
	_, body, err := Render("cancellation_confirmation", TemplateData{BusinessName: "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>x</script>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := Render("welcome", TemplateData{})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestSendBillingEmail(t *testing.T) {
	svc := NewEmailService(config.SMTPConfig{
		Host:      "smtp.test",
		Port:      "587",
		Username:  "billing",
		Password:  "secret",
		FromEmail: "billing@bizflow.test",
	})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := svc.SendBillingEmail("owner@aurora.test", "trial_expiring_soon", TemplateData{
		BusinessName: "Salon Aurora",
		Details:      map[string]interface{}{"days_left": 3, "trial_end_date": "2026-03-13"},
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.test:587", gotAddr)
	assert.Equal(t, "billing@bizflow.test", gotFrom)
	assert.Equal(t, []string{"owner@aurora.test"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Your trial is ending soon")
	assert.Contains(t, string(gotMsg), "ends in 3 day(s)")
}

func TestSendWithoutConfiguration(t *testing.T) {
	svc := NewEmailService(config.SMTPConfig{})
	assert.False(t, svc.Configured())

	err := svc.SendBillingEmail("owner@aurora.test", "renewal_confirmation", TemplateData{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
