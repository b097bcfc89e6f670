package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Vendor webhook event types
const (
	EventCallStarted  = "call_started"
	EventCallEnded    = "call_ended"
	EventCallAnalyzed = "call_analyzed"
)

var (
	ErrMissingEvent  = errors.New("missing event type")
	ErrMissingCallID = errors.New("missing call_id")
)

// Turn is one utterance in the vendor's transcript object
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallPayload carries the call data attached to a webhook event.
// Timestamps are epoch milliseconds.
type CallPayload struct {
	CallID              string            `json:"call_id"`
	CallStatus          string            `json:"call_status,omitempty"`
	DisconnectionReason string            `json:"disconnection_reason,omitempty"`
	StartTimestamp      *int64            `json:"start_timestamp,omitempty"`
	EndTimestamp        *int64            `json:"end_timestamp,omitempty"`
	Transcript          string            `json:"transcript,omitempty"`
	TranscriptObject    []Turn            `json:"transcript_object,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// WebhookEvent is a normalized vendor webhook delivery
type WebhookEvent struct {
	Type string
	Call CallPayload
}

// Parse decodes a vendor webhook body. The vendor has shipped both the nested
// shape {"event": ..., "call": {...}} and a flattened one with the call fields
// at the top level; both are accepted.
func Parse(data []byte) (WebhookEvent, error) {
	var envelope struct {
		Event string          `json:"event"`
		Call  json.RawMessage `json:"call"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return WebhookEvent{}, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	if envelope.Event == "" {
		return WebhookEvent{}, ErrMissingEvent
	}

	var payload CallPayload
	if len(envelope.Call) > 0 && string(envelope.Call) != "null" {
		if err := json.Unmarshal(envelope.Call, &payload); err != nil {
			return WebhookEvent{}, fmt.Errorf("failed to parse call payload: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &payload); err != nil {
			return WebhookEvent{}, fmt.Errorf("failed to parse call payload: %w", err)
		}
	}

	if payload.CallID == "" {
		return WebhookEvent{}, ErrMissingCallID
	}

	return WebhookEvent{Type: envelope.Event, Call: payload}, nil
}

// StartedAt converts the start timestamp to a time, if present
func (c CallPayload) StartedAt() *time.Time {
	return millisToTime(c.StartTimestamp)
}

// EndedAt converts the end timestamp to a time, if present
func (c CallPayload) EndedAt() *time.Time {
	return millisToTime(c.EndTimestamp)
}

func millisToTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
