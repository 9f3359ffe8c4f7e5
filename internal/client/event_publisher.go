package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/storeops/be-inspections/internal/natsclient"
)

// EventPublisher publishes inspection lifecycle events to NATS for
// consumption by the admin dashboard and reporting services.
//
// Subject convention: inspections.<event_type>
// Event types: submitted, issue_updated
//
// All publish operations are non-fatal — errors are logged but never
// propagated to the caller, so event delivery failures never interrupt
// submissions or issue updates.
type EventPublisher struct {
	nats *natsclient.Client
	log  zerolog.Logger
}

// Event is the JSON schema published to NATS.
type Event struct {
	EventType    string         `json:"event_type"`
	InspectionID string         `json:"inspection_id"`
	StoreNumber  string         `json:"store_number,omitempty"`
	CategoryID   string         `json:"category_id,omitempty"`
	ItemID       string         `json:"item_id,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewEventPublisher creates a publisher backed by the given NATS client.
// A nil client turns every publish into a no-op.
func NewEventPublisher(nats *natsclient.Client, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{nats: nats, log: log}
}

// PublishInspectionSubmitted announces a newly submitted inspection.
func (p *EventPublisher) PublishInspectionSubmitted(ctx context.Context, inspectionID, storeNumber string, issueCount int) {
	p.publish(ctx, &Event{
		EventType:    "submitted",
		InspectionID: inspectionID,
		StoreNumber:  storeNumber,
		OccurredAt:   time.Now().UTC(),
		Payload:      map[string]any{"issue_count": issueCount},
	})
}

// PublishIssueUpdated announces a change to an issue's fixed flag.
func (p *EventPublisher) PublishIssueUpdated(ctx context.Context, inspectionID, categoryID, itemID string, fixed bool) {
	p.publish(ctx, &Event{
		EventType:    "issue_updated",
		InspectionID: inspectionID,
		CategoryID:   categoryID,
		ItemID:       itemID,
		OccurredAt:   time.Now().UTC(),
		Payload:      map[string]any{"fixed": fixed},
	})
}

func (p *EventPublisher) publish(ctx context.Context, event *Event) {
	if p == nil || p.nats == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", event.EventType).Msg("events: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("inspections.%s", event.EventType)
	if err := p.nats.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("inspection_id", event.InspectionID).
			Msg("events: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("inspection_id", event.InspectionID).
		Msg("events: event published")
}
