package billing

import (
	"context"

	"github.com/bizflow/backend/internal/models"
	"github.com/rs/zerolog/log"
)

// NotificationKind identifies a billing message sent to a tenant owner
type NotificationKind string

const (
	NotifyRenewalConfirmation      NotificationKind = "renewal_confirmation"
	NotifyCancellationConfirmation NotificationKind = "cancellation_confirmation"
	NotifyMissingPaymentMethod     NotificationKind = "missing_payment_method"
	NotifyExpiredCard              NotificationKind = "expired_card"
	NotifyPaymentFailedRetry       NotificationKind = "payment_failed_retry"
	NotifyPaymentFailedSuspension  NotificationKind = "payment_failed_suspension"
	NotifyTrialExpiringSoon        NotificationKind = "trial_expiring_soon"
)

// Notifier delivers billing notifications. Implementations must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, sub *models.Subscription, data map[string]interface{}) error
}

type pendingNotification struct {
	kind NotificationKind
	sub  models.Subscription
	data map[string]interface{}
}

func queueNotification(notes *[]pendingNotification, kind NotificationKind, sub *models.Subscription, data map[string]interface{}) {
	*notes = append(*notes, pendingNotification{kind: kind, sub: *sub, data: data})
}

// dispatch sends notifications collected during a committed transaction. Delivery
// failures are logged; the billing state is already final.
func dispatch(ctx context.Context, notifier Notifier, notes []pendingNotification) {
	if notifier == nil {
		return
	}
	for i := range notes {
		n := notes[i]
		if err := notifier.Notify(ctx, n.kind, &n.sub, n.data); err != nil {
			log.Error().Err(err).
				Str("kind", string(n.kind)).
				Str("subscription_id", n.sub.ID.String()).
				Msg("failed to send billing notification")
		}
	}
}
