package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dispatch-server/internal/locks"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"
	"dispatch-server/internal/workers"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	extractionTimeout  = 30 * time.Second
	extractionRetries  = 1 // one retry, two attempts total
	processorName      = "extraction-reconciler"
	jobTimeout         = 2 * time.Minute
	maxTranscriptChars = 24000
)

// Allowed values for categorical summary fields. Model output outside these
// sets is dropped rather than stored.
var (
	allowedCheckinOutcomes = map[string]bool{
		"In-Transit Update":    true,
		"Arrival Confirmation": true,
	}
	allowedDriverStatuses = map[string]bool{
		"Driving": true, "Delayed": true, "Arrived": true, "Unloading": true,
	}
	allowedDelayReasons = map[string]bool{
		"Heavy Traffic": true, "Weather": true, "None": true,
	}
	allowedUnloadingStatuses = map[string]bool{
		"In Door 42": true, "Waiting for Lumper": true, "Detention": true, "N/A": true,
	}
	allowedEmergencyTypes = map[string]bool{
		"Accident": true, "Breakdown": true, "Medical": true, "Other": true,
	}
)

// Reconciler turns transcripts of completed calls into structured summaries.
// It implements workers.JobProcessor and is driven by a worker pool fed from
// webhook deliveries.
type Reconciler struct {
	store     SummaryStore
	extractor Extractor
	alerts    AlertSender
	feed      FeedPublisher
	logger    *observability.Logger

	locks *locks.Keyed[uuid.UUID]

	pool workers.WorkerPool
}

// New creates a new Reconciler. alerts and feed may be nil when the
// corresponding services are not configured.
func New(summaryStore SummaryStore, extractor Extractor, alerts AlertSender, feed FeedPublisher, logger *observability.Logger) *Reconciler {
	return &Reconciler{
		store:     summaryStore,
		extractor: extractor,
		alerts:    alerts,
		feed:      feed,
		logger:    logger,
		locks:     locks.NewKeyed[uuid.UUID](),
	}
}

// AttachPool wires the worker pool used by Schedule. Called once during
// bootstrap, before the pool starts.
func (r *Reconciler) AttachPool(pool workers.WorkerPool) {
	r.pool = pool
}

// Name implements workers.JobProcessor
func (r *Reconciler) Name() string {
	return processorName
}

// Schedule enqueues extraction for a call
func (r *Reconciler) Schedule(ctx context.Context, callID uuid.UUID, trigger string) error {
	if r.pool == nil {
		return fmt.Errorf("reconciler has no worker pool attached")
	}
	return r.pool.Submit(ctx, workers.Job{
		ID:      uuid.New(),
		CallID:  callID,
		Trigger: trigger,
	})
}

// Process implements workers.JobProcessor. It re-reads the call at execution
// time: a call that failed or was replaced between scheduling and execution is
// skipped, and a summary already marked complete is never degraded.
func (r *Reconciler) Process(ctx context.Context, job workers.Job) error {
	unlock := r.locks.Lock(job.CallID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	call, err := r.store.GetCallByID(ctx, job.CallID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Warn(ctx, "skipping extraction for unknown call")
			return nil
		}
		return fmt.Errorf("failed to load call for extraction: %w", err)
	}

	if call.Status != store.CallStatusCompleted {
		r.logger.Info(ctx, fmt.Sprintf("skipping extraction, call status is %s", call.Status))
		return nil
	}

	transcript, err := r.store.GetTranscriptByCallID(ctx, call.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Warn(ctx, "skipping extraction, call has no transcript")
			return nil
		}
		return fmt.Errorf("failed to load transcript for extraction: %w", err)
	}

	scenarioType := r.scenarioFor(ctx, call)
	params, raw := r.extract(ctx, scenarioType, transcript.RawText)
	params.CallID = call.ID
	params.RawExtraction = raw

	summary, err := r.store.UpsertStructuredSummary(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to store structured summary: %w", err)
	}

	if r.feed != nil {
		r.feed.PublishSummary(call.ID, summary)
	}

	if scenarioType == store.ScenarioEmergency && r.alerts != nil {
		if err := r.alerts.SendEmergencyAlert(ctx, call, summary); err != nil {
			// Alerting never fails the summary write
			r.logger.Error(ctx, "failed to send emergency alert", err)
		}
	}

	return nil
}

// scenarioFor resolves the scenario a call was placed under from its agent
// config, defaulting to checkin when the config is missing.
func (r *Reconciler) scenarioFor(ctx context.Context, call store.Call) string {
	if !call.AgentConfigID.Valid {
		return store.ScenarioCheckin
	}
	config, err := r.store.GetAgentConfigByID(ctx, call.AgentConfigID.UUID)
	if err != nil {
		r.logger.Warn(ctx, "failed to load agent config for call, assuming checkin scenario")
		return store.ScenarioCheckin
	}
	return config.ScenarioType
}

// llmExtraction mirrors the JSON object the model is prompted to produce
type llmExtraction struct {
	CallOutcome      *string `json:"call_outcome"`
	DriverStatus     *string `json:"driver_status"`
	CurrentLocation  *string `json:"current_location"`
	ETA              *string `json:"eta"`
	DelayReason      *string `json:"delay_reason"`
	UnloadingStatus  *string `json:"unloading_status"`
	PODAcknowledged  *bool   `json:"pod_reminder_acknowledged"`
	EmergencyType    *string `json:"emergency_type"`
	SafetyStatus     *string `json:"safety_status"`
	InjuryStatus     *string `json:"injury_status"`
	EmergencyLoc     *string `json:"emergency_location"`
	LoadSecure       *bool   `json:"load_secure"`
	EscalationStatus *string `json:"escalation_status"`
}

// extract runs the model with bounded retries and falls back to keyword
// extraction when the model cannot be used. Categorical fields the model
// leaves empty are filled from transcript keywords. Model-backed summaries
// are partial only when every required field is missing; keyword-backed
// summaries are always partial.
func (r *Reconciler) extract(ctx context.Context, scenarioType, transcript string) (store.UpsertStructuredSummaryParams, store.JSONB) {
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}

	output, err := r.extractWithRetry(ctx, scenarioType, transcript)
	if err == nil {
		var extraction llmExtraction
		if jsonErr := json.Unmarshal([]byte(output), &extraction); jsonErr == nil {
			params := r.buildParams(scenarioType, extraction)
			fillGapsFromTranscript(&params, transcript)
			params.Partial = allRequiredMissing(scenarioType, params)
			raw := store.JSONB{
				"extraction_method": store.ExtractionMethodLLM,
				"model_output":      json.RawMessage(output),
			}
			return params, raw
		}
		r.logger.Error(ctx, "model returned unparseable extraction output",
			fmt.Errorf("invalid JSON in model output"))
	} else {
		r.logger.Error(ctx, "model extraction failed, using keyword fallback", err)
	}

	params := fallbackExtract(scenarioType, transcript)
	params.Partial = true
	raw := store.JSONB{
		"extraction_method": store.ExtractionMethodFallback,
	}
	return params, raw
}

func (r *Reconciler) extractWithRetry(ctx context.Context, scenarioType, transcript string) (string, error) {
	var output string

	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, extractionTimeout)
		defer cancel()

		result, err := r.extractor.ExtractJSON(attemptCtx, extractionPrompt(scenarioType), transcript)
		if err != nil {
			return err
		}
		output = result
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), extractionRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return output, nil
}

// buildParams validates categorical fields against their allowed sets and
// copies free-text fields as-is.
func (r *Reconciler) buildParams(scenarioType string, extraction llmExtraction) store.UpsertStructuredSummaryParams {
	params := store.UpsertStructuredSummaryParams{ScenarioType: scenarioType}

	if scenarioType == store.ScenarioEmergency {
		if hasText(extraction.CallOutcome) && *extraction.CallOutcome == "Emergency Escalation" {
			params.CallOutcome = extraction.CallOutcome
		}
		params.EmergencyType = allowedOnly(extraction.EmergencyType, allowedEmergencyTypes)
		params.SafetyStatus = textOnly(extraction.SafetyStatus)
		params.InjuryStatus = textOnly(extraction.InjuryStatus)
		params.EmergencyLoc = textOnly(extraction.EmergencyLoc)
		params.LoadSecure = extraction.LoadSecure
		params.EscalationStatus = textOnly(extraction.EscalationStatus)
		return params
	}

	params.CallOutcome = allowedOnly(extraction.CallOutcome, allowedCheckinOutcomes)
	params.DriverStatus = allowedOnly(extraction.DriverStatus, allowedDriverStatuses)
	params.CurrentLocation = textOnly(extraction.CurrentLocation)
	params.ETA = textOnly(extraction.ETA)
	params.DelayReason = allowedOnly(extraction.DelayReason, allowedDelayReasons)
	params.UnloadingStatus = allowedOnly(extraction.UnloadingStatus, allowedUnloadingStatuses)
	params.PODAcknowledged = extraction.PODAcknowledged
	return params
}

// allRequiredMissing reports whether every field required for the scenario is
// absent: call_outcome and driver_status for checkin, call_outcome and
// emergency_type for emergency.
func allRequiredMissing(scenarioType string, params store.UpsertStructuredSummaryParams) bool {
	if scenarioType == store.ScenarioEmergency {
		return params.CallOutcome == nil && params.EmergencyType == nil
	}
	return params.CallOutcome == nil && params.DriverStatus == nil
}

func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func textOnly(s *string) *string {
	if !hasText(s) {
		return nil
	}
	return s
}

func allowedOnly(s *string, allowed map[string]bool) *string {
	if s == nil || !allowed[*s] {
		return nil
	}
	return s
}
