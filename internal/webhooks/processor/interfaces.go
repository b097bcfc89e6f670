package processor

import (
	"context"
	callsProcessor "dispatch-server/internal/calls/processor"
	"dispatch-server/internal/store"

	"github.com/google/uuid"
)

// CallRegistry defines the call lifecycle operations required by WebhookProcessor
type CallRegistry interface {
	ApplyLifecycleEvent(ctx context.Context, event callsProcessor.LifecycleEvent) (store.Call, error)
	StoreTranscript(ctx context.Context, externalCallID, rawText string, utterances store.Utterances) (store.Transcript, error)
}

// ReconcileScheduler enqueues asynchronous extraction for a completed call
type ReconcileScheduler interface {
	Schedule(ctx context.Context, callID uuid.UUID, trigger string) error
}
