// Package reconcile reports actions that succeeded but could not be
// settled, so an operator or a downstream consumer can charge them later.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

const (
	// EventSource is the EventBridge source for every event this package emits.
	EventSource = "brand-studio"
	// DetailTypeUnsettled marks a successful action whose ledger write failed.
	DetailTypeUnsettled = "ActionUnsettled"
)

// UnsettledAction is the event body.
type UnsettledAction struct {
	TeamID     string            `json:"teamId"`
	UserID     string            `json:"userId"`
	ActionType string            `json:"actionType"`
	Reason     string            `json:"reason"`
	Timestamp  string            `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Publisher emits reconciliation events.
type Publisher interface {
	PublishUnsettled(ctx context.Context, event UnsettledAction) error
}

func stamp(event *UnsettledAction) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
}

// EventBridgePublisher puts events on an EventBridge bus.
type EventBridgePublisher struct {
	client  *eventbridge.Client
	busName string
}

// NewEventBridgePublisher publishes to busName, or the default bus if empty.
func NewEventBridgePublisher(client *eventbridge.Client, busName string) *EventBridgePublisher {
	return &EventBridgePublisher{client: client, busName: busName}
}

func (p *EventBridgePublisher) PublishUnsettled(ctx context.Context, event UnsettledAction) error {
	stamp(&event)
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal UnsettledAction: %w", err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(EventSource),
		DetailType: aws.String(DetailTypeUnsettled),
		Detail:     aws.String(string(detail)),
	}
	if p.busName != "" {
		entry.EventBusName = aws.String(p.busName)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		log.Error().Err(err).Str("teamId", event.TeamID).Str("action", event.ActionType).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
	}

	log.Debug().Str("teamId", event.TeamID).Str("action", event.ActionType).Msg("Unsettled action emitted to EventBridge")
	return nil
}

// LogPublisher writes events to the log only. Used when no bus is
// configured.
type LogPublisher struct{}

func (LogPublisher) PublishUnsettled(ctx context.Context, event UnsettledAction) error {
	stamp(&event)
	log.Error().
		Str("event", DetailTypeUnsettled).
		Str("teamId", event.TeamID).
		Str("userId", event.UserID).
		Str("action", event.ActionType).
		Str("reason", event.Reason).
		Interface("metadata", event.Metadata).
		Msg("Action succeeded but was not settled; reconcile manually")
	return nil
}
