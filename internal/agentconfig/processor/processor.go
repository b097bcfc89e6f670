package processor

import (
	"context"
	"errors"
	"fmt"

	"dispatch-server/internal/clients/retell"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"

	"github.com/google/uuid"
)

var (
	// ErrConfigNotFound indicates the agent config does not exist
	ErrConfigNotFound = errors.New("agent config not found")
	// ErrConfigActive indicates the active config cannot be deleted
	ErrConfigActive = errors.New("agent config is active")
	// ErrInvalidScenario indicates an unknown scenario type
	ErrInvalidScenario = errors.New("invalid scenario type")
)

// ConfigProcessor manages agent configurations and keeps the vendor-hosted
// agent in step with whichever configuration is active.
type ConfigProcessor struct {
	store   ConfigStore
	vendor  VendorAgentAPI
	agentID string
	logger  *observability.Logger
}

// New creates a new ConfigProcessor. vendor may be nil; configs are then
// managed locally without pushing to the hosted agent.
func New(configStore ConfigStore, vendor VendorAgentAPI, agentID string, logger *observability.Logger) *ConfigProcessor {
	return &ConfigProcessor{
		store:   configStore,
		vendor:  vendor,
		agentID: agentID,
		logger:  logger,
	}
}

// CreateConfigParams represents parameters for creating a configuration
type CreateConfigParams struct {
	Name                    string
	Description             *string
	ScenarioType            string
	SystemPrompt            string
	InitialMessage          *string
	EnableBackchannel       bool
	EnableFillerWords       bool
	InterruptionSensitivity float64
}

// Create stores a new configuration. New configs always start inactive.
func (p *ConfigProcessor) Create(ctx context.Context, params CreateConfigParams) (store.AgentConfig, error) {
	if !store.IsValidScenario(params.ScenarioType) {
		return store.AgentConfig{}, fmt.Errorf("%w: %q", ErrInvalidScenario, params.ScenarioType)
	}

	config, err := p.store.CreateAgentConfig(ctx, store.CreateAgentConfigParams{
		Name:                    params.Name,
		Description:             params.Description,
		ScenarioType:            params.ScenarioType,
		SystemPrompt:            params.SystemPrompt,
		InitialMessage:          params.InitialMessage,
		EnableBackchannel:       params.EnableBackchannel,
		EnableFillerWords:       params.EnableFillerWords,
		InterruptionSensitivity: params.InterruptionSensitivity,
	})
	if err != nil {
		return store.AgentConfig{}, fmt.Errorf("failed to create config: %w", err)
	}
	return config, nil
}

// Get returns one configuration by ID
func (p *ConfigProcessor) Get(ctx context.Context, id uuid.UUID) (store.AgentConfig, error) {
	config, err := p.store.GetAgentConfigByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.AgentConfig{}, ErrConfigNotFound
		}
		return store.AgentConfig{}, fmt.Errorf("failed to get config: %w", err)
	}
	return config, nil
}

// List returns configurations, optionally filtered by scenario or active state
func (p *ConfigProcessor) List(ctx context.Context, scenarioType *string, activeOnly bool) ([]store.AgentConfig, error) {
	if scenarioType != nil && !store.IsValidScenario(*scenarioType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScenario, *scenarioType)
	}
	configs, err := p.store.ListAgentConfigs(ctx, store.ListAgentConfigsParams{
		ScenarioType: scenarioType,
		ActiveOnly:   activeOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	return configs, nil
}

// UpdateConfigParams represents editable configuration fields
type UpdateConfigParams struct {
	Name                    string
	Description             *string
	SystemPrompt            string
	InitialMessage          *string
	EnableBackchannel       bool
	EnableFillerWords       bool
	InterruptionSensitivity float64
}

// Update edits a configuration. Editing the active configuration pushes the
// new settings to the vendor-hosted agent immediately.
func (p *ConfigProcessor) Update(ctx context.Context, id uuid.UUID, params UpdateConfigParams) (store.AgentConfig, error) {
	config, err := p.store.UpdateAgentConfig(ctx, id, store.UpdateAgentConfigParams{
		Name:                    params.Name,
		Description:             params.Description,
		SystemPrompt:            params.SystemPrompt,
		InitialMessage:          params.InitialMessage,
		EnableBackchannel:       params.EnableBackchannel,
		EnableFillerWords:       params.EnableFillerWords,
		InterruptionSensitivity: params.InterruptionSensitivity,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.AgentConfig{}, ErrConfigNotFound
		}
		return store.AgentConfig{}, fmt.Errorf("failed to update config: %w", err)
	}

	if config.IsActive {
		if err := p.pushToVendor(ctx, config); err != nil {
			return store.AgentConfig{}, err
		}
	}
	return config, nil
}

// Delete removes a configuration. The active configuration for a scenario
// cannot be deleted; another must be activated first.
func (p *ConfigProcessor) Delete(ctx context.Context, id uuid.UUID) error {
	config, err := p.store.GetAgentConfigByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConfigNotFound
		}
		return fmt.Errorf("failed to get config: %w", err)
	}

	if config.IsActive {
		return ErrConfigActive
	}

	if err := p.store.DeleteAgentConfig(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConfigNotFound
		}
		return fmt.Errorf("failed to delete config: %w", err)
	}
	return nil
}

// Activate makes the configuration the single active one for its scenario and
// pushes its settings to the vendor-hosted agent. The local switch commits
// first; a vendor push failure is reported but does not roll it back, and a
// later sync or re-activation converges the two.
func (p *ConfigProcessor) Activate(ctx context.Context, id uuid.UUID) (store.AgentConfig, error) {
	config, err := p.store.ActivateAgentConfig(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.AgentConfig{}, ErrConfigNotFound
		}
		return store.AgentConfig{}, fmt.Errorf("failed to activate config: %w", err)
	}

	if err := p.pushToVendor(ctx, config); err != nil {
		return store.AgentConfig{}, err
	}

	p.logger.Info(ctx, fmt.Sprintf("activated config %s for scenario %s", config.ID, config.ScenarioType))
	return config, nil
}

// SyncFromVendor overwrites the active configuration for a scenario with the
// settings currently live on the vendor-hosted agent, creating and activating
// one when the scenario has no configuration yet. The vendor is the source of
// truth for this operation.
func (p *ConfigProcessor) SyncFromVendor(ctx context.Context, scenarioType string) (store.AgentConfig, error) {
	if !store.IsValidScenario(scenarioType) {
		return store.AgentConfig{}, fmt.Errorf("%w: %q", ErrInvalidScenario, scenarioType)
	}
	if p.vendor == nil {
		return store.AgentConfig{}, fmt.Errorf("vendor client is not configured")
	}

	agent, err := p.vendor.GetAgent(ctx, p.agentID)
	if err != nil {
		return store.AgentConfig{}, fmt.Errorf("failed to read vendor agent: %w", err)
	}
	llm, err := p.vendor.GetLLM(ctx, agent.ResponseEngine.LLMID)
	if err != nil {
		return store.AgentConfig{}, fmt.Errorf("failed to read vendor llm: %w", err)
	}

	config, err := p.store.GetActiveAgentConfig(ctx, scenarioType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return p.createFromVendor(ctx, scenarioType, agent, llm)
		}
		return store.AgentConfig{}, fmt.Errorf("failed to get active config: %w", err)
	}

	updateParams := store.UpdateAgentConfigParams{
		Name:                    config.Name,
		SystemPrompt:            llm.GeneralPrompt,
		EnableBackchannel:       config.EnableBackchannel,
		EnableFillerWords:       config.EnableFillerWords,
		InterruptionSensitivity: config.InterruptionSensitivity,
	}
	if config.Description.Valid {
		updateParams.Description = &config.Description.String
	}
	if llm.BeginMessage != "" {
		updateParams.InitialMessage = &llm.BeginMessage
	}
	if agent.EnableBackchannel != nil {
		updateParams.EnableBackchannel = *agent.EnableBackchannel
	}
	if agent.InterruptionSensitivity != nil {
		updateParams.InterruptionSensitivity = *agent.InterruptionSensitivity
	}

	updated, err := p.store.UpdateAgentConfig(ctx, config.ID, updateParams)
	if err != nil {
		return store.AgentConfig{}, fmt.Errorf("failed to store synced config: %w", err)
	}

	p.logger.Info(ctx, fmt.Sprintf("synced config %s from vendor", updated.ID))
	return updated, nil
}

// createFromVendor seeds a scenario that has no configuration yet with the
// vendor agent's current state and activates the result.
func (p *ConfigProcessor) createFromVendor(ctx context.Context, scenarioType string, agent retell.Agent, llm retell.LLM) (store.AgentConfig, error) {
	name := agent.AgentName
	if name == "" {
		name = fmt.Sprintf("%s (synced from vendor)", scenarioType)
	}

	createParams := store.CreateAgentConfigParams{
		Name:         name,
		ScenarioType: scenarioType,
		SystemPrompt: llm.GeneralPrompt,
	}
	if llm.BeginMessage != "" {
		createParams.InitialMessage = &llm.BeginMessage
	}
	if agent.EnableBackchannel != nil {
		createParams.EnableBackchannel = *agent.EnableBackchannel
	}
	if agent.InterruptionSensitivity != nil {
		createParams.InterruptionSensitivity = *agent.InterruptionSensitivity
	}

	created, err := p.store.CreateAgentConfig(ctx, createParams)
	if err != nil {
		return store.AgentConfig{}, fmt.Errorf("failed to create config from vendor state: %w", err)
	}

	activated, err := p.store.ActivateAgentConfig(ctx, created.ID)
	if err != nil {
		return store.AgentConfig{}, fmt.Errorf("failed to activate synced config: %w", err)
	}

	p.logger.Info(ctx, fmt.Sprintf("created config %s for scenario %s from vendor state", activated.ID, scenarioType))
	return activated, nil
}

// pushToVendor writes the configuration's prompt and behavioral settings to
// the hosted agent and its LLM resource.
func (p *ConfigProcessor) pushToVendor(ctx context.Context, config store.AgentConfig) error {
	if p.vendor == nil {
		p.logger.Warn(ctx, "vendor client not configured, skipping agent push")
		return nil
	}

	agent, err := p.vendor.GetAgent(ctx, p.agentID)
	if err != nil {
		return fmt.Errorf("failed to read vendor agent: %w", err)
	}

	llmParams := retell.UpdateLLMParams{GeneralPrompt: &config.SystemPrompt}
	if config.InitialMessage.Valid {
		llmParams.BeginMessage = &config.InitialMessage.String
	}
	if _, err := p.vendor.UpdateLLM(ctx, agent.ResponseEngine.LLMID, llmParams); err != nil {
		return fmt.Errorf("failed to push prompt to vendor: %w", err)
	}

	backchannel := config.EnableBackchannel
	sensitivity := config.InterruptionSensitivity
	agentParams := retell.UpdateAgentParams{
		EnableBackchannel:       &backchannel,
		InterruptionSensitivity: &sensitivity,
	}
	if _, err := p.vendor.UpdateAgent(ctx, p.agentID, agentParams); err != nil {
		return fmt.Errorf("failed to push agent settings to vendor: %w", err)
	}

	return nil
}
