package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Call struct {
	ID              uuid.UUID      `db:"id"`
	ExternalCallID  sql.NullString `db:"external_call_id"`
	DriverName      string         `db:"driver_name"`
	PhoneNumber     sql.NullString `db:"phone_number"`
	LoadNumber      string         `db:"load_number"`
	Channel         string         `db:"channel"`
	Status          string         `db:"status"`
	FailureReason   sql.NullString `db:"failure_reason"`
	AgentConfigID   uuid.NullUUID  `db:"agent_config_id"`
	StartedAt       sql.NullTime   `db:"started_at"`
	EndedAt         sql.NullTime   `db:"ended_at"`
	DurationSeconds sql.NullInt32  `db:"duration_seconds"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// CreateCallParams represents parameters for creating a call record
type CreateCallParams struct {
	DriverName    string
	PhoneNumber   *string
	LoadNumber    string
	Channel       string
	AgentConfigID *uuid.UUID
}

const sqlCreateCall = `
INSERT INTO calls (driver_name, phone_number, load_number, channel, agent_config_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING *`

func (s *Store) CreateCall(ctx context.Context, params CreateCallParams) (Call, error) {
	var call Call
	err := s.db.GetContext(ctx, &call, sqlCreateCall,
		params.DriverName, params.PhoneNumber, params.LoadNumber, params.Channel, params.AgentConfigID)
	if err != nil {
		s.logger.Error(ctx, "failed to create call", err)
		return Call{}, fmt.Errorf("failed to create call: %w", err)
	}
	return call, nil
}

const sqlGetCallByID = `
SELECT * FROM calls WHERE id = $1`

func (s *Store) GetCallByID(ctx context.Context, id uuid.UUID) (Call, error) {
	var call Call
	err := s.db.GetContext(ctx, &call, sqlGetCallByID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get call by ID", err)
		return Call{}, fmt.Errorf("failed to get call by ID: %w", err)
	}
	return call, nil
}

const sqlGetCallByExternalID = `
SELECT * FROM calls WHERE external_call_id = $1`

func (s *Store) GetCallByExternalID(ctx context.Context, externalID string) (Call, error) {
	var call Call
	err := s.db.GetContext(ctx, &call, sqlGetCallByExternalID, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get call by external ID", err)
		return Call{}, fmt.Errorf("failed to get call by external ID: %w", err)
	}
	return call, nil
}

const sqlSetCallExternalID = `
UPDATE calls SET external_call_id = $2, updated_at = NOW()
WHERE id = $1
RETURNING *`

func (s *Store) SetCallExternalID(ctx context.Context, id uuid.UUID, externalID string) (Call, error) {
	var call Call
	err := s.db.GetContext(ctx, &call, sqlSetCallExternalID, id, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to set call external ID", err)
		return Call{}, fmt.Errorf("failed to set call external ID: %w", err)
	}
	return call, nil
}

const sqlStartCall = `
UPDATE calls SET status = $2, started_at = COALESCE(calls.started_at, $3), updated_at = NOW()
WHERE id = $1
RETURNING *`

// StartCall moves a call into in_progress, keeping the first observed start time.
func (s *Store) StartCall(ctx context.Context, id uuid.UUID, startedAt *time.Time) (Call, error) {
	var call Call
	err := s.db.GetContext(ctx, &call, sqlStartCall, id, CallStatusInProgress, startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to start call", err)
		return Call{}, fmt.Errorf("failed to start call: %w", err)
	}
	return call, nil
}

// EndCallParams represents parameters for moving a call into a terminal status
type EndCallParams struct {
	Status          string
	FailureReason   *string
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationSeconds *int
}

const sqlEndCall = `
UPDATE calls SET
    status = $2,
    failure_reason = COALESCE($3, calls.failure_reason),
    started_at = COALESCE(calls.started_at, $4),
    ended_at = COALESCE(calls.ended_at, $5),
    duration_seconds = COALESCE(calls.duration_seconds, $6),
    updated_at = NOW()
WHERE id = $1
RETURNING *`

// EndCall moves a call into a terminal status. Timestamps already recorded win
// over values carried by a replayed event.
func (s *Store) EndCall(ctx context.Context, id uuid.UUID, params EndCallParams) (Call, error) {
	var call Call
	err := s.db.GetContext(ctx, &call, sqlEndCall, id,
		params.Status, params.FailureReason, params.StartedAt, params.EndedAt, params.DurationSeconds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to end call", err)
		return Call{}, fmt.Errorf("failed to end call: %w", err)
	}
	return call, nil
}

const sqlMarkCallFailed = `
UPDATE calls SET status = $2, failure_reason = $3, updated_at = NOW()
WHERE id = $1
RETURNING *`

func (s *Store) MarkCallFailed(ctx context.Context, id uuid.UUID, reason string) (Call, error) {
	var call Call
	err := s.db.GetContext(ctx, &call, sqlMarkCallFailed, id, CallStatusFailed, reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to mark call failed", err)
		return Call{}, fmt.Errorf("failed to mark call failed: %w", err)
	}
	return call, nil
}

// ListCallsParams represents filter parameters for listing calls
type ListCallsParams struct {
	Status *string
	Limit  int
	Offset int
}

const sqlListCalls = `
SELECT * FROM calls
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

func (s *Store) ListCalls(ctx context.Context, params ListCallsParams) ([]Call, error) {
	calls := []Call{}
	err := s.db.SelectContext(ctx, &calls, sqlListCalls, params.Status, params.Limit, params.Offset)
	if err != nil {
		s.logger.Error(ctx, "failed to list calls", err)
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	return calls, nil
}

const sqlListRecentCompletedCalls = `
SELECT * FROM calls
WHERE status = $1
ORDER BY ended_at DESC NULLS LAST
LIMIT $2`

func (s *Store) ListRecentCompletedCalls(ctx context.Context, limit int) ([]Call, error) {
	calls := []Call{}
	err := s.db.SelectContext(ctx, &calls, sqlListRecentCompletedCalls, CallStatusCompleted, limit)
	if err != nil {
		s.logger.Error(ctx, "failed to list recent completed calls", err)
		return nil, fmt.Errorf("failed to list recent completed calls: %w", err)
	}
	return calls, nil
}
