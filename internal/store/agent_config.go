package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AgentConfig struct {
	ID                      uuid.UUID      `db:"id"`
	Name                    string         `db:"name"`
	Description             sql.NullString `db:"description"`
	ScenarioType            string         `db:"scenario_type"`
	SystemPrompt            string         `db:"system_prompt"`
	InitialMessage          sql.NullString `db:"initial_message"`
	EnableBackchannel       bool           `db:"enable_backchannel"`
	EnableFillerWords       bool           `db:"enable_filler_words"`
	InterruptionSensitivity float64        `db:"interruption_sensitivity"`
	IsActive                bool           `db:"is_active"`
	CreatedAt               time.Time      `db:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at"`
}

// CreateAgentConfigParams represents parameters for creating an agent config
type CreateAgentConfigParams struct {
	Name                    string
	Description             *string
	ScenarioType            string
	SystemPrompt            string
	InitialMessage          *string
	EnableBackchannel       bool
	EnableFillerWords       bool
	InterruptionSensitivity float64
}

const sqlCreateAgentConfig = `
INSERT INTO agent_configs (
    name, description, scenario_type, system_prompt, initial_message,
    enable_backchannel, enable_filler_words, interruption_sensitivity
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING *`

func (s *Store) CreateAgentConfig(ctx context.Context, params CreateAgentConfigParams) (AgentConfig, error) {
	var config AgentConfig
	err := s.db.GetContext(ctx, &config, sqlCreateAgentConfig,
		params.Name, params.Description, params.ScenarioType, params.SystemPrompt,
		params.InitialMessage, params.EnableBackchannel, params.EnableFillerWords,
		params.InterruptionSensitivity)
	if err != nil {
		s.logger.Error(ctx, "failed to create agent config", err)
		return AgentConfig{}, fmt.Errorf("failed to create agent config: %w", err)
	}
	return config, nil
}

const sqlGetAgentConfigByID = `
SELECT * FROM agent_configs WHERE id = $1`

func (s *Store) GetAgentConfigByID(ctx context.Context, id uuid.UUID) (AgentConfig, error) {
	var config AgentConfig
	err := s.db.GetContext(ctx, &config, sqlGetAgentConfigByID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentConfig{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get agent config by ID", err)
		return AgentConfig{}, fmt.Errorf("failed to get agent config by ID: %w", err)
	}
	return config, nil
}

const sqlGetActiveAgentConfig = `
SELECT * FROM agent_configs WHERE scenario_type = $1 AND is_active`

func (s *Store) GetActiveAgentConfig(ctx context.Context, scenarioType string) (AgentConfig, error) {
	var config AgentConfig
	err := s.db.GetContext(ctx, &config, sqlGetActiveAgentConfig, scenarioType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentConfig{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get active agent config", err)
		return AgentConfig{}, fmt.Errorf("failed to get active agent config: %w", err)
	}
	return config, nil
}

// ListAgentConfigsParams represents filter parameters for listing agent configs
type ListAgentConfigsParams struct {
	ScenarioType *string
	ActiveOnly   bool
}

const sqlListAgentConfigs = `
SELECT * FROM agent_configs
WHERE ($1::text IS NULL OR scenario_type = $1)
  AND (NOT $2::boolean OR is_active)
ORDER BY created_at DESC`

func (s *Store) ListAgentConfigs(ctx context.Context, params ListAgentConfigsParams) ([]AgentConfig, error) {
	configs := []AgentConfig{}
	err := s.db.SelectContext(ctx, &configs, sqlListAgentConfigs, params.ScenarioType, params.ActiveOnly)
	if err != nil {
		s.logger.Error(ctx, "failed to list agent configs", err)
		return nil, fmt.Errorf("failed to list agent configs: %w", err)
	}
	return configs, nil
}

// UpdateAgentConfigParams represents editable agent config fields
type UpdateAgentConfigParams struct {
	Name                    string
	Description             *string
	SystemPrompt            string
	InitialMessage          *string
	EnableBackchannel       bool
	EnableFillerWords       bool
	InterruptionSensitivity float64
}

const sqlUpdateAgentConfig = `
UPDATE agent_configs SET
    name = $2,
    description = $3,
    system_prompt = $4,
    initial_message = $5,
    enable_backchannel = $6,
    enable_filler_words = $7,
    interruption_sensitivity = $8,
    updated_at = NOW()
WHERE id = $1
RETURNING *`

func (s *Store) UpdateAgentConfig(ctx context.Context, id uuid.UUID, params UpdateAgentConfigParams) (AgentConfig, error) {
	var config AgentConfig
	err := s.db.GetContext(ctx, &config, sqlUpdateAgentConfig, id,
		params.Name, params.Description, params.SystemPrompt, params.InitialMessage,
		params.EnableBackchannel, params.EnableFillerWords, params.InterruptionSensitivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentConfig{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to update agent config", err)
		return AgentConfig{}, fmt.Errorf("failed to update agent config: %w", err)
	}
	return config, nil
}

const sqlDeleteAgentConfig = `
DELETE FROM agent_configs WHERE id = $1`

func (s *Store) DeleteAgentConfig(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, sqlDeleteAgentConfig, id)
	if err != nil {
		s.logger.Error(ctx, "failed to delete agent config", err)
		return fmt.Errorf("failed to delete agent config: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Error(ctx, "failed to get rows affected", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

const sqlLockAgentConfigScenario = `
SELECT * FROM agent_configs WHERE id = $1 FOR UPDATE`

const sqlDeactivateScenarioConfigs = `
UPDATE agent_configs SET is_active = FALSE, updated_at = NOW()
WHERE scenario_type = $1 AND is_active AND id <> $2`

const sqlActivateAgentConfig = `
UPDATE agent_configs SET is_active = TRUE, updated_at = NOW()
WHERE id = $1
RETURNING *`

// ActivateAgentConfig atomically makes the given config the single active one
// for its scenario. The previous active config for the scenario is deactivated
// in the same transaction; the partial unique index on (scenario_type) keeps
// concurrent activations from ever committing two active rows.
func (s *Store) ActivateAgentConfig(ctx context.Context, id uuid.UUID) (AgentConfig, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error(ctx, "failed to begin transaction", err)
		return AgentConfig{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var config AgentConfig
	if err := tx.GetContext(ctx, &config, sqlLockAgentConfigScenario, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentConfig{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to lock agent config", err)
		return AgentConfig{}, fmt.Errorf("failed to lock agent config: %w", err)
	}

	if _, err := tx.ExecContext(ctx, sqlDeactivateScenarioConfigs, config.ScenarioType, id); err != nil {
		s.logger.Error(ctx, "failed to deactivate scenario configs", err)
		return AgentConfig{}, fmt.Errorf("failed to deactivate scenario configs: %w", err)
	}

	if err := tx.GetContext(ctx, &config, sqlActivateAgentConfig, id); err != nil {
		s.logger.Error(ctx, "failed to activate agent config", err)
		return AgentConfig{}, fmt.Errorf("failed to activate agent config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error(ctx, "failed to commit activation", err)
		return AgentConfig{}, fmt.Errorf("failed to commit activation: %w", err)
	}

	return config, nil
}
