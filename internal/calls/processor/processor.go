package processor

import (
	"context"
	"dispatch-server/internal/clients/retell"
	"dispatch-server/internal/clients/twilio"
	"dispatch-server/internal/locks"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrCallNotFound        = errors.New("call not found")
	ErrPhoneNumberRequired = errors.New("phone number required for phone calls")
	ErrInvalidPhoneNumber  = errors.New("invalid phone number")
	ErrInvalidChannel      = errors.New("invalid call channel")
	ErrInvalidScenario     = errors.New("invalid scenario type")
	ErrConfigNotFound      = errors.New("agent config not found")
	ErrInvalidTransition   = errors.New("invalid call state transition")
)

// CallProcessor handles call registry business logic
type CallProcessor struct {
	store          CallStore
	vendor         VendorClient
	phoneValidator PhoneValidator // nil when Twilio credentials are not configured
	feed           FeedPublisher  // nil when the live feed is disabled
	agentID        string
	fromNumber     string
	// Serializes lifecycle processing per call. Vendor webhooks are delivered
	// at least once and without ordering guarantees; all transitions for one
	// call must apply in sequence.
	locks  *locks.Keyed[string]
	logger *observability.Logger
}

// New creates a new CallProcessor
func New(
	store CallStore,
	vendor VendorClient,
	phoneValidator PhoneValidator,
	feed FeedPublisher,
	agentID string,
	fromNumber string,
	logger *observability.Logger,
) *CallProcessor {
	return &CallProcessor{
		store:          store,
		vendor:         vendor,
		phoneValidator: phoneValidator,
		feed:           feed,
		agentID:        agentID,
		fromNumber:     fromNumber,
		locks:          locks.NewKeyed[string](),
		logger:         logger,
	}
}

// CreateCallParams represents parameters for creating and triggering a call
type CreateCallParams struct {
	Channel       string
	DriverName    string
	LoadNumber    string
	PhoneNumber   *string
	ScenarioType  string
	AgentConfigID *uuid.UUID
}

// CreateCallResult carries the created call and, for web calls, the token the
// browser client uses to join.
type CreateCallResult struct {
	Call        store.Call
	AccessToken string
}

// CreateCall validates the request, persists a pending call and asks the
// vendor to start it. Validation failures happen before anything is persisted;
// vendor failures leave a failed call record behind.
func (p *CallProcessor) CreateCall(ctx context.Context, params CreateCallParams) (CreateCallResult, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "channel", Value: params.Channel},
		observability.Field{Key: "load_number", Value: params.LoadNumber},
	)

	if params.Channel != store.CallChannelPhone && params.Channel != store.CallChannelWeb {
		return CreateCallResult{}, ErrInvalidChannel
	}

	if params.Channel == store.CallChannelPhone {
		if params.PhoneNumber == nil || *params.PhoneNumber == "" {
			return CreateCallResult{}, ErrPhoneNumberRequired
		}
		if p.phoneValidator != nil {
			if err := p.phoneValidator.ValidatePhoneNumber(ctx, *params.PhoneNumber); err != nil {
				if errors.Is(err, twilio.ErrInvalidPhoneNumber) {
					return CreateCallResult{}, ErrInvalidPhoneNumber
				}
				// Lookup outage must not block dialing
				p.logger.Warn(ctx, "phone lookup unavailable, skipping validation")
			}
		}
	}

	config, err := p.resolveConfig(ctx, params.ScenarioType, params.AgentConfigID)
	if err != nil {
		return CreateCallResult{}, err
	}

	call, err := p.store.CreateCall(ctx, store.CreateCallParams{
		DriverName:    params.DriverName,
		PhoneNumber:   params.PhoneNumber,
		LoadNumber:    params.LoadNumber,
		Channel:       params.Channel,
		AgentConfigID: &config.ID,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to create call record", err)
		return CreateCallResult{}, fmt.Errorf("failed to create call record: %w", err)
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "call_id", Value: call.ID})

	vendorResp, err := p.triggerVendorCall(ctx, call, params)
	if err != nil {
		if _, markErr := p.store.MarkCallFailed(ctx, call.ID, err.Error()); markErr != nil {
			p.logger.Error(ctx, "failed to mark call failed after vendor error", markErr)
		}
		p.publishStatus(call.ID, store.CallStatusFailed)
		p.logger.Error(ctx, "vendor refused to start call", err)
		return CreateCallResult{}, err
	}

	call, err = p.store.SetCallExternalID(ctx, call.ID, vendorResp.CallID)
	if err != nil {
		p.logger.Error(ctx, "failed to record external call ID", err)
		return CreateCallResult{}, fmt.Errorf("failed to record external call ID: %w", err)
	}

	p.publishStatus(call.ID, call.Status)
	p.logger.Info(ctx, fmt.Sprintf("call %s accepted by vendor as %s", call.ID, vendorResp.CallID))

	return CreateCallResult{Call: call, AccessToken: vendorResp.AccessToken}, nil
}

// resolveConfig picks the explicit config when given, otherwise the active
// config for the requested scenario.
func (p *CallProcessor) resolveConfig(ctx context.Context, scenarioType string, configID *uuid.UUID) (store.AgentConfig, error) {
	if configID != nil {
		config, err := p.store.GetAgentConfigByID(ctx, *configID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.AgentConfig{}, ErrConfigNotFound
			}
			return store.AgentConfig{}, fmt.Errorf("failed to resolve agent config: %w", err)
		}
		return config, nil
	}

	if scenarioType == "" {
		scenarioType = store.ScenarioCheckin
	}
	if !store.IsValidScenario(scenarioType) {
		return store.AgentConfig{}, ErrInvalidScenario
	}

	config, err := p.store.GetActiveAgentConfig(ctx, scenarioType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.AgentConfig{}, ErrConfigNotFound
		}
		return store.AgentConfig{}, fmt.Errorf("failed to resolve active agent config: %w", err)
	}
	return config, nil
}

// triggerVendorCall asks the vendor to start the call over the chosen channel
func (p *CallProcessor) triggerVendorCall(ctx context.Context, call store.Call, params CreateCallParams) (retell.CallResponse, error) {
	metadata := map[string]string{"internal_call_id": call.ID.String()}
	dynamicVars := map[string]string{
		"driver_name": params.DriverName,
		"load_number": params.LoadNumber,
	}

	if params.Channel == store.CallChannelPhone {
		return p.vendor.CreatePhoneCall(ctx, retell.CreatePhoneCallParams{
			FromNumber:       p.fromNumber,
			ToNumber:         *params.PhoneNumber,
			OverrideAgentID:  p.agentID,
			Metadata:         metadata,
			DynamicVariables: dynamicVars,
		})
	}

	return p.vendor.CreateWebCall(ctx, retell.CreateWebCallParams{
		AgentID:          p.agentID,
		Metadata:         metadata,
		DynamicVariables: dynamicVars,
	})
}

// CallDetails bundles a call with its transcript and summary when present
type CallDetails struct {
	Call       store.Call
	Transcript *store.Transcript
	Summary    *store.StructuredSummary
}

// GetCallDetails returns a call with its transcript and structured summary
func (p *CallProcessor) GetCallDetails(ctx context.Context, callID uuid.UUID) (CallDetails, error) {
	call, err := p.store.GetCallByID(ctx, callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CallDetails{}, ErrCallNotFound
		}
		return CallDetails{}, fmt.Errorf("failed to get call: %w", err)
	}

	details := CallDetails{Call: call}

	transcript, err := p.store.GetTranscriptByCallID(ctx, callID)
	if err == nil {
		details.Transcript = &transcript
	} else if !errors.Is(err, store.ErrNotFound) {
		return CallDetails{}, fmt.Errorf("failed to get transcript: %w", err)
	}

	summary, err := p.store.GetStructuredSummaryByCallID(ctx, callID)
	if err == nil {
		details.Summary = &summary
	} else if !errors.Is(err, store.ErrNotFound) {
		return CallDetails{}, fmt.Errorf("failed to get summary: %w", err)
	}

	return details, nil
}

// ListCalls returns calls filtered by status, newest first
func (p *CallProcessor) ListCalls(ctx context.Context, status *string, limit, offset int) ([]store.Call, error) {
	calls, err := p.store.ListCalls(ctx, store.ListCallsParams{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to list calls", err)
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	return calls, nil
}

// CallWithSummary pairs a call with its summary for dashboard listings
type CallWithSummary struct {
	Call    store.Call
	Summary *store.StructuredSummary
}

// RecentCompleted returns recently completed calls with their summaries
func (p *CallProcessor) RecentCompleted(ctx context.Context, limit int) ([]CallWithSummary, error) {
	calls, err := p.store.ListRecentCompletedCalls(ctx, limit)
	if err != nil {
		p.logger.Error(ctx, "failed to list recent completed calls", err)
		return nil, fmt.Errorf("failed to list recent completed calls: %w", err)
	}

	results := make([]CallWithSummary, 0, len(calls))
	for _, call := range calls {
		item := CallWithSummary{Call: call}
		summary, err := p.store.GetStructuredSummaryByCallID(ctx, call.ID)
		if err == nil {
			item.Summary = &summary
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to get summary for call %s: %w", call.ID, err)
		}
		results = append(results, item)
	}
	return results, nil
}

func (p *CallProcessor) publishStatus(callID uuid.UUID, status string) {
	if p.feed != nil {
		p.feed.PublishCallStatus(callID, status)
	}
}
