package reconciler

import (
	"context"

	"dispatch-server/internal/store"

	"github.com/google/uuid"
)

// SummaryStore defines the data access required by the Reconciler
type SummaryStore interface {
	GetCallByID(ctx context.Context, id uuid.UUID) (store.Call, error)
	GetTranscriptByCallID(ctx context.Context, callID uuid.UUID) (store.Transcript, error)
	GetAgentConfigByID(ctx context.Context, id uuid.UUID) (store.AgentConfig, error)
	UpsertStructuredSummary(ctx context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error)
}

// Extractor produces a JSON object from a transcript using a language model
type Extractor interface {
	ExtractJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AlertSender notifies operators about emergency calls
type AlertSender interface {
	SendEmergencyAlert(ctx context.Context, call store.Call, summary store.StructuredSummary) error
}

// FeedPublisher pushes summary updates to live watchers
type FeedPublisher interface {
	PublishSummary(callID uuid.UUID, summary store.StructuredSummary)
}
