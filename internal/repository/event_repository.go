package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
)

// EventRepository appends webhook outbox rows and usage metering rows. Both
// tables are append-only; delivery/aggregation happens outside the pipeline.
type EventRepository interface {
	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	CreateUsageEvent(ctx context.Context, event *models.UsageEvent) error
}

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (project_id, event_type, payload)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, event.ProjectID, event.EventType, []byte(event.Payload))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *eventRepository) CreateUsageEvent(ctx context.Context, event *models.UsageEvent) error {
	query := `
		INSERT INTO usage_events (billing_customer_id, event_name)
		VALUES ($1, $2)
	`
	_, err := r.db.ExecContext(ctx, query, event.BillingCustomerID, event.EventName)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
