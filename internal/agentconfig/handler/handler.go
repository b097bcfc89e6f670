package handler

import (
	"net/http"
	"time"

	"dispatch-server/internal/agentconfig/processor"
	"dispatch-server/internal/apierrors"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles agent configuration HTTP requests
type Handler struct {
	processor *processor.ConfigProcessor
	logger    *observability.Logger
}

// New creates a new Handler
func New(processor *processor.ConfigProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// ConfigRequest represents a create or update request body
type ConfigRequest struct {
	Name                    string  `json:"name" binding:"required,max=200"`
	Description             *string `json:"description"`
	ScenarioType            string  `json:"scenario_type" binding:"required,oneof=checkin emergency"`
	SystemPrompt            string  `json:"system_prompt" binding:"required"`
	InitialMessage          *string `json:"initial_message"`
	EnableBackchannel       bool    `json:"enable_backchannel"`
	EnableFillerWords       bool    `json:"enable_filler_words"`
	InterruptionSensitivity float64 `json:"interruption_sensitivity" binding:"min=0,max=1"`
}

// ConfigView is the JSON shape of a configuration returned to clients
type ConfigView struct {
	ID                      uuid.UUID `json:"id"`
	Name                    string    `json:"name"`
	Description             *string   `json:"description,omitempty"`
	ScenarioType            string    `json:"scenario_type"`
	SystemPrompt            string    `json:"system_prompt"`
	InitialMessage          *string   `json:"initial_message,omitempty"`
	EnableBackchannel       bool      `json:"enable_backchannel"`
	EnableFillerWords       bool      `json:"enable_filler_words"`
	InterruptionSensitivity float64   `json:"interruption_sensitivity"`
	IsActive                bool      `json:"is_active"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func configView(config store.AgentConfig) ConfigView {
	view := ConfigView{
		ID:                      config.ID,
		Name:                    config.Name,
		ScenarioType:            config.ScenarioType,
		SystemPrompt:            config.SystemPrompt,
		EnableBackchannel:       config.EnableBackchannel,
		EnableFillerWords:       config.EnableFillerWords,
		InterruptionSensitivity: config.InterruptionSensitivity,
		IsActive:                config.IsActive,
		CreatedAt:               config.CreatedAt,
		UpdatedAt:               config.UpdatedAt,
	}
	if config.Description.Valid {
		view.Description = &config.Description.String
	}
	if config.InitialMessage.Valid {
		view.InitialMessage = &config.InitialMessage.String
	}
	return view
}

// HandleCreateConfig handles POST /api/protected/agent-configs
func (h *Handler) HandleCreateConfig(c *gin.Context) {
	ctx := c.Request.Context()

	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	config, err := h.processor.Create(ctx, processor.CreateConfigParams{
		Name:                    req.Name,
		Description:             req.Description,
		ScenarioType:            req.ScenarioType,
		SystemPrompt:            req.SystemPrompt,
		InitialMessage:          req.InitialMessage,
		EnableBackchannel:       req.EnableBackchannel,
		EnableFillerWords:       req.EnableFillerWords,
		InterruptionSensitivity: req.InterruptionSensitivity,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"config": configView(config)})
}

// HandleListConfigs handles GET /api/protected/agent-configs
func (h *Handler) HandleListConfigs(c *gin.Context) {
	ctx := c.Request.Context()

	var scenarioType *string
	if scenario := c.Query("scenario_type"); scenario != "" {
		scenarioType = &scenario
	}
	activeOnly := c.Query("active") == "true"

	configs, err := h.processor.List(ctx, scenarioType, activeOnly)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	views := make([]ConfigView, 0, len(configs))
	for _, config := range configs {
		views = append(views, configView(config))
	}
	c.JSON(http.StatusOK, gin.H{"configs": views})
}

// HandleGetConfig handles GET /api/protected/agent-configs/:config_id
func (h *Handler) HandleGetConfig(c *gin.Context) {
	ctx := c.Request.Context()

	configID, ok := h.parseConfigID(c)
	if !ok {
		return
	}

	config, err := h.processor.Get(ctx, configID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": configView(config)})
}

// HandleUpdateConfig handles PUT /api/protected/agent-configs/:config_id
func (h *Handler) HandleUpdateConfig(c *gin.Context) {
	ctx := c.Request.Context()

	configID, ok := h.parseConfigID(c)
	if !ok {
		return
	}

	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	config, err := h.processor.Update(ctx, configID, processor.UpdateConfigParams{
		Name:                    req.Name,
		Description:             req.Description,
		SystemPrompt:            req.SystemPrompt,
		InitialMessage:          req.InitialMessage,
		EnableBackchannel:       req.EnableBackchannel,
		EnableFillerWords:       req.EnableFillerWords,
		InterruptionSensitivity: req.InterruptionSensitivity,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": configView(config)})
}

// HandleDeleteConfig handles DELETE /api/protected/agent-configs/:config_id
func (h *Handler) HandleDeleteConfig(c *gin.Context) {
	ctx := c.Request.Context()

	configID, ok := h.parseConfigID(c)
	if !ok {
		return
	}

	if err := h.processor.Delete(ctx, configID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleActivateConfig handles POST /api/protected/agent-configs/:config_id/activate
func (h *Handler) HandleActivateConfig(c *gin.Context) {
	ctx := c.Request.Context()

	configID, ok := h.parseConfigID(c)
	if !ok {
		return
	}

	config, err := h.processor.Activate(ctx, configID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": configView(config)})
}

// SyncRequest represents a vendor sync request body
type SyncRequest struct {
	ScenarioType string `json:"scenario_type" binding:"required,oneof=checkin emergency"`
}

// HandleSyncConfig handles POST /api/protected/agent-configs/sync
func (h *Handler) HandleSyncConfig(c *gin.Context) {
	ctx := c.Request.Context()

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	config, err := h.processor.SyncFromVendor(ctx, req.ScenarioType)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": configView(config)})
}

func (h *Handler) parseConfigID(c *gin.Context) (uuid.UUID, bool) {
	configID, err := uuid.Parse(c.Param("config_id"))
	if err != nil {
		h.logger.Error(c.Request.Context(), "failed to parse config_id", err)
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "invalid config_id"))
		return uuid.UUID{}, false
	}
	return configID, true
}
