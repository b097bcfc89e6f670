package processor

import (
	"context"
	"dispatch-server/internal/clients/retell"
	"dispatch-server/internal/store"
	"time"

	"github.com/google/uuid"
)

// CallStore defines the database operations required by CallProcessor
type CallStore interface {
	CreateCall(ctx context.Context, params store.CreateCallParams) (store.Call, error)
	GetCallByID(ctx context.Context, id uuid.UUID) (store.Call, error)
	GetCallByExternalID(ctx context.Context, externalID string) (store.Call, error)
	SetCallExternalID(ctx context.Context, id uuid.UUID, externalID string) (store.Call, error)
	StartCall(ctx context.Context, id uuid.UUID, startedAt *time.Time) (store.Call, error)
	EndCall(ctx context.Context, id uuid.UUID, params store.EndCallParams) (store.Call, error)
	MarkCallFailed(ctx context.Context, id uuid.UUID, reason string) (store.Call, error)
	ListCalls(ctx context.Context, params store.ListCallsParams) ([]store.Call, error)
	ListRecentCompletedCalls(ctx context.Context, limit int) ([]store.Call, error)
	CreateTranscript(ctx context.Context, params store.CreateTranscriptParams) (store.Transcript, error)
	GetTranscriptByCallID(ctx context.Context, callID uuid.UUID) (store.Transcript, error)
	GetStructuredSummaryByCallID(ctx context.Context, callID uuid.UUID) (store.StructuredSummary, error)
	GetAgentConfigByID(ctx context.Context, id uuid.UUID) (store.AgentConfig, error)
	GetActiveAgentConfig(ctx context.Context, scenarioType string) (store.AgentConfig, error)
}

// VendorClient defines the voice vendor operations required by CallProcessor
type VendorClient interface {
	CreatePhoneCall(ctx context.Context, params retell.CreatePhoneCallParams) (retell.CallResponse, error)
	CreateWebCall(ctx context.Context, params retell.CreateWebCallParams) (retell.CallResponse, error)
}

// PhoneValidator validates dialable phone numbers before a call is placed
type PhoneValidator interface {
	ValidatePhoneNumber(ctx context.Context, phoneNumber string) error
}

// FeedPublisher pushes call updates to live feed subscribers
type FeedPublisher interface {
	PublishCallStatus(callID uuid.UUID, status string)
}
