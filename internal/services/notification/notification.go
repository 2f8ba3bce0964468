package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bizflow/backend/internal/models"
	"github.com/bizflow/backend/internal/queue"
	"github.com/bizflow/backend/internal/services/billing"
	"github.com/bizflow/backend/internal/services/email"
	"github.com/rs/zerolog/log"
)

// QueueName is the Redis queue billing notifications are delivered through
const QueueName = "billing_notifications"

var ErrMissingRecipient = errors.New("subscription has no owner email")

// Job is the payload stored on the notification queue. It carries everything the
// email needs so delivery never touches the database.
type Job struct {
	Kind           billing.NotificationKind `json:"kind"`
	SubscriptionID string                   `json:"subscription_id"`
	BusinessID     string                   `json:"business_id"`
	Email          string                   `json:"email"`
	OwnerName      string                   `json:"owner_name"`
	BusinessName   string                   `json:"business_name"`
	PlanName       string                   `json:"plan_name"`
	Amount         float64                  `json:"amount"`
	Currency       string                   `json:"currency"`
	Data           map[string]interface{}   `json:"data,omitempty"`
}

// NewJob snapshots the subscription fields a notification needs
func NewJob(kind billing.NotificationKind, sub *models.Subscription, data map[string]interface{}) Job {
	job := Job{
		Kind:           kind,
		SubscriptionID: sub.ID.String(),
		BusinessID:     sub.BusinessID.String(),
		Email:          sub.Business.OwnerEmail,
		OwnerName:      sub.Business.OwnerName,
		BusinessName:   sub.Business.Name,
		PlanName:       sub.Plan.Name,
		Amount:         sub.Plan.Price,
		Currency:       sub.Plan.Currency,
		Data:           data,
	}
	if amount, ok := data["amount"].(float64); ok {
		job.Amount = amount
	}
	if currency, ok := data["currency"].(string); ok && currency != "" {
		job.Currency = currency
	}
	return job
}

// QueueNotifier hands notifications to the Redis queue for asynchronous delivery
type QueueNotifier struct {
	queue *queue.RedisQueue
}

// NewQueueNotifier creates a new QueueNotifier
func NewQueueNotifier(q *queue.RedisQueue) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

// Notify enqueues a notification job
func (n *QueueNotifier) Notify(ctx context.Context, kind billing.NotificationKind, sub *models.Subscription, data map[string]interface{}) error {
	job := NewJob(kind, sub, data)
	if job.Email == "" {
		return ErrMissingRecipient
	}
	id, err := n.queue.Enqueue(ctx, QueueName, job)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s notification: %w", kind, err)
	}
	log.Debug().Str("job_id", id).Str("kind", string(kind)).Str("subscription_id", job.SubscriptionID).Msg("notification queued")
	return nil
}

// LogNotifier only logs notifications. Used when Redis or SMTP are not configured.
type LogNotifier struct{}

// Notify logs the notification
func (LogNotifier) Notify(_ context.Context, kind billing.NotificationKind, sub *models.Subscription, data map[string]interface{}) error {
	log.Info().
		Str("kind", string(kind)).
		Str("subscription_id", sub.ID.String()).
		Str("email", sub.Business.OwnerEmail).
		Interface("data", data).
		Msg("billing notification")
	return nil
}

// Mailer sends a rendered billing email
type Mailer interface {
	SendBillingEmail(toEmail, name string, data email.TemplateData) error
}

// Delivery sends queued notifications by email
type Delivery struct {
	mailer Mailer
}

// NewDelivery creates a new Delivery
func NewDelivery(mailer Mailer) *Delivery {
	return &Delivery{mailer: mailer}
}

// Register attaches the delivery handler to a job processor
func (d *Delivery) Register(p *queue.JobProcessor) {
	p.RegisterHandler(QueueName, d.Handle)
}

// Handle processes one notification job
func (d *Delivery) Handle(ctx context.Context, qj *queue.Job) error {
	var job Job
	if err := qj.Decode(&job); err != nil {
		return fmt.Errorf("failed to decode notification job: %w", err)
	}
	if job.Email == "" {
		return ErrMissingRecipient
	}

	data := email.TemplateData{
		OwnerName:    job.OwnerName,
		BusinessName: job.BusinessName,
		PlanName:     job.PlanName,
		Amount:       strconv.FormatFloat(job.Amount, 'f', 2, 64),
		Currency:     job.Currency,
		Details:      job.Data,
	}
	if err := d.mailer.SendBillingEmail(job.Email, string(job.Kind), data); err != nil {
		return fmt.Errorf("failed to send %s email: %w", job.Kind, err)
	}

	log.Info().Str("kind", string(job.Kind)).Str("subscription_id", job.SubscriptionID).Msg("notification delivered")
	return nil
}
