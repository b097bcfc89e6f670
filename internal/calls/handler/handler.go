package handler

import (
	"net/http"
	"strconv"
	"time"

	"dispatch-server/internal/apierrors"
	"dispatch-server/internal/calls/processor"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles call registry HTTP requests
type Handler struct {
	processor *processor.CallProcessor
	logger    *observability.Logger
}

// New creates a new Handler
func New(processor *processor.CallProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// CreateCallRequest represents a request to create and trigger a call
type CreateCallRequest struct {
	Channel       string  `json:"channel" binding:"required,oneof=phone web"`
	DriverName    string  `json:"driver_name" binding:"required"`
	LoadNumber    string  `json:"load_number" binding:"required"`
	PhoneNumber   *string `json:"phone_number"`
	ScenarioType  string  `json:"scenario_type" binding:"omitempty,oneof=checkin emergency"`
	AgentConfigID *string `json:"agent_config_id" binding:"omitempty,uuid"`
}

// CallView is the JSON shape of a call returned to clients
type CallView struct {
	ID              uuid.UUID  `json:"id"`
	ExternalCallID  *string    `json:"external_call_id,omitempty"`
	DriverName      string     `json:"driver_name"`
	PhoneNumber     *string    `json:"phone_number,omitempty"`
	LoadNumber      string     `json:"load_number"`
	Channel         string     `json:"channel"`
	Status          string     `json:"status"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
	AgentConfigID   *uuid.UUID `json:"agent_config_id,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func callView(call store.Call) CallView {
	view := CallView{
		ID:         call.ID,
		DriverName: call.DriverName,
		LoadNumber: call.LoadNumber,
		Channel:    call.Channel,
		Status:     call.Status,
		CreatedAt:  call.CreatedAt,
		UpdatedAt:  call.UpdatedAt,
	}
	if call.ExternalCallID.Valid {
		view.ExternalCallID = &call.ExternalCallID.String
	}
	if call.PhoneNumber.Valid {
		view.PhoneNumber = &call.PhoneNumber.String
	}
	if call.FailureReason.Valid {
		view.FailureReason = &call.FailureReason.String
	}
	if call.AgentConfigID.Valid {
		view.AgentConfigID = &call.AgentConfigID.UUID
	}
	if call.StartedAt.Valid {
		view.StartedAt = &call.StartedAt.Time
	}
	if call.EndedAt.Valid {
		view.EndedAt = &call.EndedAt.Time
	}
	if call.DurationSeconds.Valid {
		duration := int(call.DurationSeconds.Int32)
		view.DurationSeconds = &duration
	}
	return view
}

// TranscriptView is the JSON shape of a transcript returned to clients
type TranscriptView struct {
	RawText    string           `json:"raw_text"`
	Utterances store.Utterances `json:"utterances"`
	CreatedAt  time.Time        `json:"created_at"`
}

// SummaryView is the JSON shape of a structured summary returned to clients
type SummaryView struct {
	ScenarioType     string      `json:"scenario_type"`
	CallOutcome      *string     `json:"call_outcome,omitempty"`
	DriverStatus     *string     `json:"driver_status,omitempty"`
	CurrentLocation  *string     `json:"current_location,omitempty"`
	ETA              *string     `json:"eta,omitempty"`
	DelayReason      *string     `json:"delay_reason,omitempty"`
	UnloadingStatus  *string     `json:"unloading_status,omitempty"`
	PODAcknowledged  *bool       `json:"pod_reminder_acknowledged,omitempty"`
	EmergencyType    *string     `json:"emergency_type,omitempty"`
	SafetyStatus     *string     `json:"safety_status,omitempty"`
	InjuryStatus     *string     `json:"injury_status,omitempty"`
	EmergencyLoc     *string     `json:"emergency_location,omitempty"`
	LoadSecure       *bool       `json:"load_secure,omitempty"`
	EscalationStatus *string     `json:"escalation_status,omitempty"`
	RawExtraction    store.JSONB `json:"raw_extraction,omitempty"`
	Partial          bool        `json:"partial"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func summaryView(summary store.StructuredSummary) SummaryView {
	view := SummaryView{
		ScenarioType:  summary.ScenarioType,
		RawExtraction: summary.RawExtraction,
		Partial:       summary.Partial,
		UpdatedAt:     summary.UpdatedAt,
	}
	if summary.CallOutcome.Valid {
		view.CallOutcome = &summary.CallOutcome.String
	}
	if summary.DriverStatus.Valid {
		view.DriverStatus = &summary.DriverStatus.String
	}
	if summary.CurrentLocation.Valid {
		view.CurrentLocation = &summary.CurrentLocation.String
	}
	if summary.ETA.Valid {
		view.ETA = &summary.ETA.String
	}
	if summary.DelayReason.Valid {
		view.DelayReason = &summary.DelayReason.String
	}
	if summary.UnloadingStatus.Valid {
		view.UnloadingStatus = &summary.UnloadingStatus.String
	}
	if summary.PODAcknowledged.Valid {
		view.PODAcknowledged = &summary.PODAcknowledged.Bool
	}
	if summary.EmergencyType.Valid {
		view.EmergencyType = &summary.EmergencyType.String
	}
	if summary.SafetyStatus.Valid {
		view.SafetyStatus = &summary.SafetyStatus.String
	}
	if summary.InjuryStatus.Valid {
		view.InjuryStatus = &summary.InjuryStatus.String
	}
	if summary.EmergencyLoc.Valid {
		view.EmergencyLoc = &summary.EmergencyLoc.String
	}
	if summary.LoadSecure.Valid {
		view.LoadSecure = &summary.LoadSecure.Bool
	}
	if summary.EscalationStatus.Valid {
		view.EscalationStatus = &summary.EscalationStatus.String
	}
	return view
}

// HandleCreateCall handles POST /api/protected/calls
func (h *Handler) HandleCreateCall(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	var configID *uuid.UUID
	if req.AgentConfigID != nil && *req.AgentConfigID != "" {
		parsed, err := uuid.Parse(*req.AgentConfigID)
		if err != nil {
			h.logger.Error(ctx, "failed to parse agent_config_id", err)
			apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "invalid agent_config_id"))
			return
		}
		configID = &parsed
	}

	result, err := h.processor.CreateCall(ctx, processor.CreateCallParams{
		Channel:       req.Channel,
		DriverName:    req.DriverName,
		LoadNumber:    req.LoadNumber,
		PhoneNumber:   req.PhoneNumber,
		ScenarioType:  req.ScenarioType,
		AgentConfigID: configID,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	resp := gin.H{"call": callView(result.Call)}
	if result.AccessToken != "" {
		resp["access_token"] = result.AccessToken
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleListCalls handles GET /api/protected/calls
func (h *Handler) HandleListCalls(c *gin.Context) {
	ctx := c.Request.Context()

	var status *string
	if statusStr := c.Query("status"); statusStr != "" {
		status = &statusStr
	}

	limit := 20
	offset := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	calls, err := h.processor.ListCalls(ctx, status, limit, offset)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	views := make([]CallView, 0, len(calls))
	for _, call := range calls {
		views = append(views, callView(call))
	}

	c.JSON(http.StatusOK, gin.H{
		"calls": views,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
		},
	})
}

// HandleRecentCalls handles GET /api/protected/calls/recent
func (h *Handler) HandleRecentCalls(c *gin.Context) {
	ctx := c.Request.Context()

	limit := 10
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	results, err := h.processor.RecentCompleted(ctx, limit)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	type recentCallView struct {
		Call    CallView     `json:"call"`
		Summary *SummaryView `json:"summary,omitempty"`
	}

	views := make([]recentCallView, 0, len(results))
	for _, result := range results {
		item := recentCallView{Call: callView(result.Call)}
		if result.Summary != nil {
			view := summaryView(*result.Summary)
			item.Summary = &view
		}
		views = append(views, item)
	}

	c.JSON(http.StatusOK, gin.H{"calls": views})
}

// HandleGetCall handles GET /api/protected/calls/:call_id
func (h *Handler) HandleGetCall(c *gin.Context) {
	ctx := c.Request.Context()

	callID, err := uuid.Parse(c.Param("call_id"))
	if err != nil {
		h.logger.Error(ctx, "failed to parse call_id", err)
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "invalid call_id"))
		return
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "call_id", Value: callID})

	details, err := h.processor.GetCallDetails(ctx, callID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	resp := gin.H{"call": callView(details.Call)}
	if details.Transcript != nil {
		resp["transcript"] = TranscriptView{
			RawText:    details.Transcript.RawText,
			Utterances: details.Transcript.Utterances,
			CreatedAt:  details.Transcript.CreatedAt,
		}
	}
	if details.Summary != nil {
		resp["summary"] = summaryView(*details.Summary)
	}

	c.JSON(http.StatusOK, resp)
}

// HandleExportCalls handles GET /api/protected/calls/export
func (h *Handler) HandleExportCalls(c *gin.Context) {
	ctx := c.Request.Context()

	workbook, err := h.processor.ExportCalls(ctx)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	filename := "calls-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}
