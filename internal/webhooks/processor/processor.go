package processor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	callsProcessor "dispatch-server/internal/calls/processor"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"
	"dispatch-server/internal/webhooks/events"
)

// ErrInvalidSignature indicates the webhook body failed HMAC verification
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Disconnection reasons the vendor reports for calls that never connected
var failedDisconnectionReasons = map[string]bool{
	"dial_failed":    true,
	"dial_busy":      true,
	"dial_no_answer": true,
}

// WebhookProcessor applies verified vendor webhook events to the call
// registry and schedules extraction for completed calls.
type WebhookProcessor struct {
	registry  CallRegistry
	scheduler ReconcileScheduler
	secret    string
	logger    *observability.Logger
}

// New creates a new WebhookProcessor
func New(registry CallRegistry, scheduler ReconcileScheduler, secret string, logger *observability.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		registry:  registry,
		scheduler: scheduler,
		secret:    secret,
		logger:    logger,
	}
}

// VerifySignature checks the hex HMAC-SHA256 signature of the raw body.
// Nothing from an unverified body may be processed.
func (p *WebhookProcessor) VerifySignature(body []byte, signature string) error {
	if signature == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ProcessEvent applies a parsed webhook event. Deliveries are at least once
// and unordered: unknown calls and conflicting transitions are logged and
// swallowed so the delivery still acks, while infrastructure errors propagate
// so the vendor retries.
func (p *WebhookProcessor) ProcessEvent(ctx context.Context, event events.WebhookEvent) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "webhook_event", Value: event.Type},
		observability.Field{Key: "external_call_id", Value: event.Call.CallID},
	)

	switch event.Type {
	case events.EventCallStarted:
		return p.handleStarted(ctx, event.Call)
	case events.EventCallEnded:
		return p.handleEnded(ctx, event.Call)
	case events.EventCallAnalyzed:
		return p.handleAnalyzed(ctx, event.Call)
	default:
		p.logger.Info(ctx, fmt.Sprintf("ignoring unhandled webhook event %q", event.Type))
		return nil
	}
}

func (p *WebhookProcessor) handleStarted(ctx context.Context, payload events.CallPayload) error {
	_, err := p.registry.ApplyLifecycleEvent(ctx, callsProcessor.LifecycleEvent{
		ExternalCallID: payload.CallID,
		Type:           callsProcessor.EventStarted,
		StartedAt:      payload.StartedAt(),
	})
	return p.swallowExpected(ctx, err)
}

func (p *WebhookProcessor) handleEnded(ctx context.Context, payload events.CallPayload) error {
	outcome := store.CallStatusCompleted
	var failureReason *string
	if isFailedOutcome(payload) {
		outcome = store.CallStatusFailed
		reason := payload.DisconnectionReason
		if reason == "" {
			reason = payload.CallStatus
		}
		failureReason = &reason
	}

	call, err := p.registry.ApplyLifecycleEvent(ctx, callsProcessor.LifecycleEvent{
		ExternalCallID: payload.CallID,
		Type:           callsProcessor.EventEnded,
		Outcome:        outcome,
		FailureReason:  failureReason,
		StartedAt:      payload.StartedAt(),
		EndedAt:        payload.EndedAt(),
	})
	if swallowed := p.swallowExpected(ctx, err); swallowed != nil {
		return swallowed
	}
	if err != nil {
		// Swallowed: nothing further to do for this delivery
		return nil
	}

	p.storeTranscriptIfPresent(ctx, payload)

	if call.Status == store.CallStatusCompleted {
		if err := p.scheduler.Schedule(ctx, call.ID, events.EventCallEnded); err != nil {
			p.logger.Error(ctx, "failed to schedule extraction", err)
			return fmt.Errorf("failed to schedule extraction: %w", err)
		}
	}
	return nil
}

func (p *WebhookProcessor) handleAnalyzed(ctx context.Context, payload events.CallPayload) error {
	// The analyzed event is a redundant extraction trigger; reconciliation is
	// idempotent so scheduling again is harmless. The lifecycle event must
	// apply before the transcript write: an analyzed delivery can be the first
	// one seen for a call still pending, and a transcript cannot attach to a
	// call that never started.
	call, err := p.registry.ApplyLifecycleEvent(ctx, callsProcessor.LifecycleEvent{
		ExternalCallID: payload.CallID,
		Type:           callsProcessor.EventEnded,
		Outcome:        store.CallStatusCompleted,
		StartedAt:      payload.StartedAt(),
		EndedAt:        payload.EndedAt(),
	})
	if swallowed := p.swallowExpected(ctx, err); swallowed != nil {
		return swallowed
	}
	if err != nil {
		return nil
	}

	p.storeTranscriptIfPresent(ctx, payload)

	if err := p.scheduler.Schedule(ctx, call.ID, events.EventCallAnalyzed); err != nil {
		p.logger.Error(ctx, "failed to schedule extraction", err)
		return fmt.Errorf("failed to schedule extraction: %w", err)
	}
	return nil
}

// storeTranscriptIfPresent persists the transcript carried by the payload.
// Failures here never fail the delivery; the analyzed event carries the
// transcript again.
func (p *WebhookProcessor) storeTranscriptIfPresent(ctx context.Context, payload events.CallPayload) {
	if payload.Transcript == "" && len(payload.TranscriptObject) == 0 {
		return
	}

	utterances := make(store.Utterances, 0, len(payload.TranscriptObject))
	for _, turn := range payload.TranscriptObject {
		utterances = append(utterances, store.Utterance{Role: turn.Role, Content: turn.Content})
	}

	if _, err := p.registry.StoreTranscript(ctx, payload.CallID, payload.Transcript, utterances); err != nil {
		p.logger.Error(ctx, "failed to store transcript from webhook", err)
	}
}

// swallowExpected filters errors that are normal under at-least-once,
// unordered delivery. Unknown calls and conflicting transitions are logged
// and acked; everything else is returned for a retryable 5xx.
func (p *WebhookProcessor) swallowExpected(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, callsProcessor.ErrCallNotFound) {
		p.logger.Warn(ctx, "webhook for unknown call, discarding")
		return nil
	}
	if errors.Is(err, callsProcessor.ErrInvalidTransition) {
		p.logger.Error(ctx, "webhook carried conflicting transition, discarding", err)
		return nil
	}
	return err
}

func isFailedOutcome(payload events.CallPayload) bool {
	if payload.CallStatus == "error" {
		return true
	}
	if strings.HasPrefix(payload.DisconnectionReason, "error") {
		return true
	}
	return failedDisconnectionReasons[payload.DisconnectionReason]
}
