package processor

import (
	"context"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"
	"errors"
	"fmt"
	"time"
)

// Lifecycle event types applied to the call registry
const (
	EventStarted = "started"
	EventEnded   = "ended"
)

// LifecycleEvent is a normalized vendor lifecycle notification
type LifecycleEvent struct {
	ExternalCallID string
	Type           string // started or ended
	Outcome        string // terminal status for ended events: completed or failed
	FailureReason  *string
	StartedAt      *time.Time
	EndedAt        *time.Time
}

// ApplyLifecycleEvent applies a vendor lifecycle event to the call it refers
// to. Transitions are monotonic: pending -> in_progress -> completed|failed.
// Replayed events are no-ops; an ended event arriving before started moves the
// call straight to its terminal status with both timestamps taken from the
// event. A transition that would change a terminal outcome is rejected with
// ErrInvalidTransition.
func (p *CallProcessor) ApplyLifecycleEvent(ctx context.Context, event LifecycleEvent) (store.Call, error) {
	unlock := p.locks.Lock(event.ExternalCallID)
	defer unlock()

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "external_call_id", Value: event.ExternalCallID},
		observability.Field{Key: "event_type", Value: event.Type},
	)

	call, err := p.store.GetCallByExternalID(ctx, event.ExternalCallID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Call{}, ErrCallNotFound
		}
		return store.Call{}, fmt.Errorf("failed to look up call: %w", err)
	}

	switch event.Type {
	case EventStarted:
		return p.applyStarted(ctx, call, event)
	case EventEnded:
		return p.applyEnded(ctx, call, event)
	default:
		return store.Call{}, fmt.Errorf("%w: unknown event type %q", ErrInvalidTransition, event.Type)
	}
}

func (p *CallProcessor) applyStarted(ctx context.Context, call store.Call, event LifecycleEvent) (store.Call, error) {
	switch call.Status {
	case store.CallStatusPending:
		updated, err := p.store.StartCall(ctx, call.ID, event.StartedAt)
		if err != nil {
			return store.Call{}, fmt.Errorf("failed to apply started event: %w", err)
		}
		p.publishStatus(updated.ID, updated.Status)
		return updated, nil

	case store.CallStatusInProgress:
		// Replayed started event, first-write-wins for the start time
		p.logger.Info(ctx, "ignoring repeated started event")
		return call, nil

	default:
		// The call already ended; a late started event carries nothing new
		p.logger.Info(ctx, "ignoring started event for ended call")
		return call, nil
	}
}

func (p *CallProcessor) applyEnded(ctx context.Context, call store.Call, event LifecycleEvent) (store.Call, error) {
	outcome := event.Outcome
	if outcome != store.CallStatusCompleted && outcome != store.CallStatusFailed {
		return store.Call{}, fmt.Errorf("%w: unknown outcome %q", ErrInvalidTransition, outcome)
	}

	if store.IsTerminalCallStatus(call.Status) {
		if call.Status == outcome {
			// Replayed ended event
			p.logger.Info(ctx, "ignoring repeated ended event")
			return call, nil
		}
		return store.Call{}, fmt.Errorf("%w: call already %s, event says %s",
			ErrInvalidTransition, call.Status, outcome)
	}

	// Ended before started is legal under at-least-once delivery: treat the
	// call as started and ended, with both timestamps from the event.
	startedAt := event.StartedAt
	if call.StartedAt.Valid {
		startedAt = &call.StartedAt.Time
	}

	var duration *int
	if startedAt != nil && event.EndedAt != nil {
		seconds := int(event.EndedAt.Sub(*startedAt) / time.Second)
		if seconds >= 0 {
			duration = &seconds
		}
	}

	updated, err := p.store.EndCall(ctx, call.ID, store.EndCallParams{
		Status:          outcome,
		FailureReason:   event.FailureReason,
		StartedAt:       event.StartedAt,
		EndedAt:         event.EndedAt,
		DurationSeconds: duration,
	})
	if err != nil {
		return store.Call{}, fmt.Errorf("failed to apply ended event: %w", err)
	}

	p.publishStatus(updated.ID, updated.Status)
	p.logger.Info(ctx, fmt.Sprintf("call %s ended with status %s", updated.ID, updated.Status))
	return updated, nil
}

// StoreTranscript attaches the transcript to a started call. Storing is
// idempotent; a replay returns the transcript already on record.
func (p *CallProcessor) StoreTranscript(ctx context.Context, externalCallID, rawText string, utterances store.Utterances) (store.Transcript, error) {
	unlock := p.locks.Lock(externalCallID)
	defer unlock()

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "external_call_id", Value: externalCallID},
	)

	call, err := p.store.GetCallByExternalID(ctx, externalCallID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Transcript{}, ErrCallNotFound
		}
		return store.Transcript{}, fmt.Errorf("failed to look up call: %w", err)
	}

	if call.Status == store.CallStatusPending {
		return store.Transcript{}, fmt.Errorf("%w: transcript for a call that never started", ErrInvalidTransition)
	}

	transcript, err := p.store.CreateTranscript(ctx, store.CreateTranscriptParams{
		CallID:     call.ID,
		RawText:    rawText,
		Utterances: utterances,
	})
	if err != nil {
		return store.Transcript{}, fmt.Errorf("failed to store transcript: %w", err)
	}

	return transcript, nil
}
