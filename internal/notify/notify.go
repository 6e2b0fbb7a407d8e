package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/repository"
)

const (
	EventPostResultCreated = "post.result.created"
	EventPostUpdated       = "post.updated"

	UsageEventPostPublished = "post_published"
)

// Notifier appends webhook event and metering rows. All emission is
// best-effort: failures are logged and never propagate into the pipeline's
// success/failure decision.
type Notifier struct {
	events repository.EventRepository
}

func New(events repository.EventRepository) *Notifier {
	return &Notifier{events: events}
}

func (n *Notifier) ResultCreated(ctx context.Context, projectID int64, result *models.PostResult) {
	n.emit(ctx, projectID, EventPostResultCreated, result)
}

type PostUpdatedPayload struct {
	Post    *models.Post         `json:"post"`
	Results []*models.PostResult `json:"results"`
}

func (n *Notifier) PostUpdated(ctx context.Context, projectID int64, payload *PostUpdatedPayload) {
	n.emit(ctx, projectID, EventPostUpdated, payload)
}

func (n *Notifier) MeterPublish(ctx context.Context, billingCustomerID string) {
	if billingCustomerID == "" {
		return
	}
	event := &models.UsageEvent{
		BillingCustomerID: billingCustomerID,
		EventName:         UsageEventPostPublished,
	}
	if err := n.events.CreateUsageEvent(ctx, event); err != nil {
		slog.Info("usage metering failed", "billing_customer_id", billingCustomerID, "error", err)
	}
}

func (n *Notifier) emit(ctx context.Context, projectID int64, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Info("event payload marshal failed", "event_type", eventType, "error", err)
		return
	}
	event := &models.WebhookEvent{
		ProjectID: projectID,
		EventType: eventType,
		Payload:   body,
	}
	if err := n.events.CreateWebhookEvent(ctx, event); err != nil {
		slog.Info("event emit failed", "event_type", eventType, "error", err)
	}
}
