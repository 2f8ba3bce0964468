package email

import "html/template"

type billingTemplate struct {
	subject string
	body    *template.Template
}

var layout = template.Must(template.New("layout").Parse(`
<!DOCTYPE html>
<html>
<head>
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #0F766E; color: white; padding: 10px; text-align: center; }
		.content { padding: 20px; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>BizFlow</h1>
		</div>
		<div class="content">
			<h2>Hello {{if .OwnerName}}{{.OwnerName}}{{else}}there{{end}},</h2>
			{{.Body}}
			<p>Best regards,<br>The BizFlow Team</p>
		</div>
	</div>
</body>
</html>
`))

func newTemplate(name, subject, body string) billingTemplate {
	return billingTemplate{
		subject: subject,
		body:    template.Must(template.New(name).Parse(body)),
	}
}

var billingTemplates = map[string]billingTemplate{
	"renewal_confirmation": newTemplate("renewal_confirmation",
		"Your subscription has been renewed",
		`<p>We charged {{.Amount}} {{.Currency}} for the {{.PlanName}} plan of {{.BusinessName}}.</p>
<p>Your subscription is active until {{index .Details "end_date"}}.</p>`),

	"cancellation_confirmation": newTemplate("cancellation_confirmation",
		"Your subscription has been canceled",
		`<p>The {{.PlanName}} subscription of {{.BusinessName}} was canceled at the end of its billing period.</p>
<p>You can subscribe again at any time from your dashboard.</p>`),

	"missing_payment_method": newTemplate("missing_payment_method",
		"Action required: add a payment method",
		`<p>We could not renew the {{.PlanName}} subscription of {{.BusinessName}} because there is no payment method on file.</p>
<p>Your account has been suspended. Add a card to restore access.</p>`),

	"expired_card": newTemplate("expired_card",
		"Action required: your card has expired",
		`<p>The {{index .Details "brand"}} card ending in {{index .Details "last_four"}} has expired.</p>
<p>The {{.PlanName}} subscription of {{.BusinessName}} has been suspended. Update your card to restore access.</p>`),

	"payment_failed_retry": newTemplate("payment_failed_retry",
		"We could not process your payment",
		`<p>The payment of {{.Amount}} {{.Currency}} for {{.BusinessName}} failed: {{index .Details "reason"}}.</p>
<p>This was attempt {{index .Details "attempt"}} of {{index .Details "max_attempts"}}. We will try again on {{index .Details "next_retry_date"}}.</p>`),

	"payment_failed_suspension": newTemplate("payment_failed_suspension",
		"Your subscription has been suspended",
		`<p>We were unable to collect the payment of {{.Amount}} {{.Currency}} for {{.BusinessName}} after {{index .Details "attempt"}} attempts.</p>
<p>Your account has been suspended. Update your payment method to restore access.</p>`),

	"trial_expiring_soon": newTemplate("trial_expiring_soon",
		"Your trial is ending soon",
		`<p>The trial of {{.BusinessName}} ends in {{index .Details "days_left"}} day(s), on {{index .Details "trial_end_date"}}.</p>
<p>Make sure a payment method is on file so the {{.PlanName}} plan starts without interruption.</p>`),
}
