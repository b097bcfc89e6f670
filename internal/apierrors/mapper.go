package apierrors

import (
	"errors"
	"strings"

	agentconfigProcessor "dispatch-server/internal/agentconfig/processor"
	authProcessor "dispatch-server/internal/auth/processor"
	callsProcessor "dispatch-server/internal/calls/processor"
	"dispatch-server/internal/clients/retell"
	"dispatch-server/internal/store"
	webhooksProcessor "dispatch-server/internal/webhooks/processor"
)

// MapError converts processor and client errors to APIError with appropriate
// HTTP status codes. Handlers pass errors straight through RespondWithError;
// this is the single place domain errors are translated for clients.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	// Already an APIError, pass through
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	// Call registry errors
	case errors.Is(err, callsProcessor.ErrCallNotFound):
		return NotFound(CodeCallNotFound, "call not found")
	case errors.Is(err, callsProcessor.ErrPhoneNumberRequired):
		return BadRequest(CodePhoneRequired, "phone_number is required for phone calls")
	case errors.Is(err, callsProcessor.ErrInvalidPhoneNumber):
		return BadRequest(CodeInvalidPhone, "phone number failed validation")
	case errors.Is(err, callsProcessor.ErrInvalidChannel):
		return BadRequest(CodeInvalidInput, "channel must be phone or web")
	case errors.Is(err, callsProcessor.ErrInvalidScenario):
		return BadRequest(CodeInvalidScenario, "scenario_type must be checkin or emergency")
	case errors.Is(err, callsProcessor.ErrConfigNotFound):
		return NotFound(CodeConfigNotFound, "agent configuration not found")
	case errors.Is(err, callsProcessor.ErrInvalidTransition):
		return Conflict(CodeInvalidTransition, "call is not in a state that allows this transition")

	// Agent configuration errors
	case errors.Is(err, agentconfigProcessor.ErrConfigNotFound):
		return NotFound(CodeConfigNotFound, "agent configuration not found")
	case errors.Is(err, agentconfigProcessor.ErrConfigActive):
		return Conflict(CodeConfigActive, "active configuration cannot be deleted; activate another first")
	case errors.Is(err, agentconfigProcessor.ErrInvalidScenario):
		return BadRequest(CodeInvalidScenario, "scenario_type must be checkin or emergency")

	// Authentication errors
	case errors.Is(err, authProcessor.ErrIncorrectPassword):
		return Unauthorized("incorrect password")
	case errors.Is(err, authProcessor.ErrInvalidToken):
		return Unauthorized("invalid or expired token")

	// Webhook errors
	case errors.Is(err, webhooksProcessor.ErrInvalidSignature):
		return &APIError{StatusCode: 401, Code: CodeInvalidSignature, Message: "invalid webhook signature"}

	// Vendor API errors
	case errors.Is(err, retell.ErrVendorUnavailable):
		return ServiceUnavailable(CodeVendorUnavailable, "voice vendor is unavailable, please try again later", err)
	case errors.Is(err, retell.ErrVendorRejected):
		return ServiceUnavailable(CodeVendorUnavailable, "voice vendor rejected the request", err)

	// Store errors
	case errors.Is(err, store.ErrNotFound):
		return NotFound(CodeNotFound, "resource not found")
	}

	if mapped := mapExternalServiceError(err); mapped != nil {
		return mapped
	}

	return InternalError(err)
}

// mapExternalServiceError catches errors from downstream services that do not
// carry a sentinel, using the error text as a last resort.
func mapExternalServiceError(err error) *APIError {
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "openai") {
		return ServiceUnavailable(CodeAIServiceError, "AI service is unavailable, please try again later", err)
	}
	if strings.Contains(msg, "resend") {
		return ServiceUnavailable(CodeEmailServiceError, "email service is unavailable, please try again later", err)
	}
	return nil
}
