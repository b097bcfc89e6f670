package handler

import (
	"errors"
	"io"
	"net/http"

	"dispatch-server/internal/apierrors"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/webhooks/events"
	"dispatch-server/internal/webhooks/processor"

	"github.com/gin-gonic/gin"
)

// Signature header sent by the voice vendor with every delivery
const signatureHeader = "X-Retell-Signature"

// Handler handles vendor webhook HTTP deliveries
type Handler struct {
	processor *processor.WebhookProcessor
	logger    *observability.Logger
}

// New creates a new Handler
func New(processor *processor.WebhookProcessor, logger *observability.Logger) *Handler {
	return &Handler{
		processor: processor,
		logger:    logger,
	}
}

// HandleVendorWebhook handles POST /webhooks/voice.
// The route is unauthenticated; the HMAC signature over the raw body is the
// only trust anchor. Verified, parseable deliveries always ack with 200 so
// the vendor does not retry events we have chosen to discard.
func (h *Handler) HandleVendorWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error(ctx, "failed to read webhook body", err)
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "failed to read request body"))
		return
	}

	if err := h.processor.VerifySignature(body, c.GetHeader(signatureHeader)); err != nil {
		h.logger.Error(ctx, "webhook signature verification failed", err)
		apierrors.RespondWithError(c, apierrors.Unauthorized("invalid webhook signature"))
		return
	}

	event, err := events.Parse(body)
	if err != nil {
		if errors.Is(err, events.ErrMissingEvent) || errors.Is(err, events.ErrMissingCallID) {
			h.logger.Error(ctx, "webhook body missing required fields", err)
			apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, err.Error()))
			return
		}
		h.logger.Error(ctx, "failed to parse webhook body", err)
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "malformed webhook body"))
		return
	}

	if err := h.processor.ProcessEvent(ctx, event); err != nil {
		// Infrastructure failure: respond 5xx so the vendor redelivers
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
