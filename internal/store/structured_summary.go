package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type StructuredSummary struct {
	ID               uuid.UUID      `db:"id"`
	CallID           uuid.UUID      `db:"call_id"`
	ScenarioType     string         `db:"scenario_type"`
	CallOutcome      sql.NullString `db:"call_outcome"`
	DriverStatus     sql.NullString `db:"driver_status"`
	CurrentLocation  sql.NullString `db:"current_location"`
	ETA              sql.NullString `db:"eta"`
	DelayReason      sql.NullString `db:"delay_reason"`
	UnloadingStatus  sql.NullString `db:"unloading_status"`
	PODAcknowledged  sql.NullBool   `db:"pod_acknowledged"`
	EmergencyType    sql.NullString `db:"emergency_type"`
	SafetyStatus     sql.NullString `db:"safety_status"`
	InjuryStatus     sql.NullString `db:"injury_status"`
	EmergencyLoc     sql.NullString `db:"emergency_location"`
	LoadSecure       sql.NullBool   `db:"load_secure"`
	EscalationStatus sql.NullString `db:"escalation_status"`
	RawExtraction    JSONB          `db:"raw_extraction"`
	Partial          bool           `db:"partial"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// UpsertStructuredSummaryParams represents the extracted fields for a call summary
type UpsertStructuredSummaryParams struct {
	CallID           uuid.UUID
	ScenarioType     string
	CallOutcome      *string
	DriverStatus     *string
	CurrentLocation  *string
	ETA              *string
	DelayReason      *string
	UnloadingStatus  *string
	PODAcknowledged  *bool
	EmergencyType    *string
	SafetyStatus     *string
	InjuryStatus     *string
	EmergencyLoc     *string
	LoadSecure       *bool
	EscalationStatus *string
	RawExtraction    JSONB
	Partial          bool
}

const sqlUpsertStructuredSummary = `
INSERT INTO structured_summaries (
    call_id, scenario_type, call_outcome, driver_status, current_location, eta,
    delay_reason, unloading_status, pod_acknowledged, emergency_type, safety_status,
    injury_status, emergency_location, load_secure, escalation_status, raw_extraction, partial
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (call_id) DO UPDATE SET
    scenario_type = EXCLUDED.scenario_type,
    call_outcome = EXCLUDED.call_outcome,
    driver_status = EXCLUDED.driver_status,
    current_location = EXCLUDED.current_location,
    eta = EXCLUDED.eta,
    delay_reason = EXCLUDED.delay_reason,
    unloading_status = EXCLUDED.unloading_status,
    pod_acknowledged = EXCLUDED.pod_acknowledged,
    emergency_type = EXCLUDED.emergency_type,
    safety_status = EXCLUDED.safety_status,
    injury_status = EXCLUDED.injury_status,
    emergency_location = EXCLUDED.emergency_location,
    load_secure = EXCLUDED.load_secure,
    escalation_status = EXCLUDED.escalation_status,
    raw_extraction = EXCLUDED.raw_extraction,
    partial = EXCLUDED.partial,
    updated_at = NOW()
WHERE structured_summaries.partial
RETURNING *`

// UpsertStructuredSummary writes the summary for a call. A summary that is
// already complete (partial = false) is never overwritten; in that case the
// existing row is returned unchanged.
func (s *Store) UpsertStructuredSummary(ctx context.Context, params UpsertStructuredSummaryParams) (StructuredSummary, error) {
	var summary StructuredSummary
	err := s.db.GetContext(ctx, &summary, sqlUpsertStructuredSummary,
		params.CallID, params.ScenarioType, params.CallOutcome, params.DriverStatus,
		params.CurrentLocation, params.ETA, params.DelayReason, params.UnloadingStatus,
		params.PODAcknowledged, params.EmergencyType, params.SafetyStatus, params.InjuryStatus,
		params.EmergencyLoc, params.LoadSecure, params.EscalationStatus,
		params.RawExtraction, params.Partial)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict path with a complete summary in place: keep it
			return s.GetStructuredSummaryByCallID(ctx, params.CallID)
		}
		s.logger.Error(ctx, "failed to upsert structured summary", err)
		return StructuredSummary{}, fmt.Errorf("failed to upsert structured summary: %w", err)
	}
	return summary, nil
}

const sqlGetStructuredSummaryByCallID = `
SELECT * FROM structured_summaries WHERE call_id = $1`

func (s *Store) GetStructuredSummaryByCallID(ctx context.Context, callID uuid.UUID) (StructuredSummary, error) {
	var summary StructuredSummary
	err := s.db.GetContext(ctx, &summary, sqlGetStructuredSummaryByCallID, callID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StructuredSummary{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get structured summary by call ID", err)
		return StructuredSummary{}, fmt.Errorf("failed to get structured summary by call ID: %w", err)
	}
	return summary, nil
}
