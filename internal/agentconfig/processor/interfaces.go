package processor

import (
	"context"

	"dispatch-server/internal/clients/retell"
	"dispatch-server/internal/store"

	"github.com/google/uuid"
)

// ConfigStore defines the data access required by ConfigProcessor
type ConfigStore interface {
	CreateAgentConfig(ctx context.Context, params store.CreateAgentConfigParams) (store.AgentConfig, error)
	GetAgentConfigByID(ctx context.Context, id uuid.UUID) (store.AgentConfig, error)
	GetActiveAgentConfig(ctx context.Context, scenarioType string) (store.AgentConfig, error)
	ListAgentConfigs(ctx context.Context, params store.ListAgentConfigsParams) ([]store.AgentConfig, error)
	UpdateAgentConfig(ctx context.Context, id uuid.UUID, params store.UpdateAgentConfigParams) (store.AgentConfig, error)
	DeleteAgentConfig(ctx context.Context, id uuid.UUID) error
	ActivateAgentConfig(ctx context.Context, id uuid.UUID) (store.AgentConfig, error)
}

// VendorAgentAPI defines the vendor operations used to keep the hosted agent
// in step with the active configuration
type VendorAgentAPI interface {
	GetAgent(ctx context.Context, agentID string) (retell.Agent, error)
	UpdateAgent(ctx context.Context, agentID string, params retell.UpdateAgentParams) (retell.Agent, error)
	GetLLM(ctx context.Context, llmID string) (retell.LLM, error)
	UpdateLLM(ctx context.Context, llmID string, params retell.UpdateLLMParams) (retell.LLM, error)
}
