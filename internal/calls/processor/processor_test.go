package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch-server/internal/clients/retell"
	"dispatch-server/internal/clients/twilio"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"

	"github.com/google/uuid"
)

var errUnexpectedCall = errors.New("unexpected store call")

// fakeStore implements CallStore with per-test function fields
type fakeStore struct {
	createCall            func(ctx context.Context, params store.CreateCallParams) (store.Call, error)
	getCallByID           func(ctx context.Context, id uuid.UUID) (store.Call, error)
	getCallByExternalID   func(ctx context.Context, externalID string) (store.Call, error)
	setCallExternalID     func(ctx context.Context, id uuid.UUID, externalID string) (store.Call, error)
	startCall             func(ctx context.Context, id uuid.UUID, startedAt *time.Time) (store.Call, error)
	endCall               func(ctx context.Context, id uuid.UUID, params store.EndCallParams) (store.Call, error)
	markCallFailed        func(ctx context.Context, id uuid.UUID, reason string) (store.Call, error)
	listCalls             func(ctx context.Context, params store.ListCallsParams) ([]store.Call, error)
	listRecentCompleted   func(ctx context.Context, limit int) ([]store.Call, error)
	createTranscript      func(ctx context.Context, params store.CreateTranscriptParams) (store.Transcript, error)
	getTranscriptByCallID func(ctx context.Context, callID uuid.UUID) (store.Transcript, error)
	getSummaryByCallID    func(ctx context.Context, callID uuid.UUID) (store.StructuredSummary, error)
	getAgentConfigByID    func(ctx context.Context, id uuid.UUID) (store.AgentConfig, error)
	getActiveAgentConfig  func(ctx context.Context, scenarioType string) (store.AgentConfig, error)
}

func (f *fakeStore) CreateCall(ctx context.Context, params store.CreateCallParams) (store.Call, error) {
	if f.createCall == nil {
		return store.Call{}, errUnexpectedCall
	}
	return f.createCall(ctx, params)
}

func (f *fakeStore) GetCallByID(ctx context.Context, id uuid.UUID) (store.Call, error) {
	if f.getCallByID == nil {
		return store.Call{}, errUnexpectedCall
	}
	return f.getCallByID(ctx, id)
}

func (f *fakeStore) GetCallByExternalID(ctx context.Context, externalID string) (store.Call, error) {
	if f.getCallByExternalID == nil {
		return store.Call{}, errUnexpectedCall
	}
	return f.getCallByExternalID(ctx, externalID)
}

func (f *fakeStore) SetCallExternalID(ctx context.Context, id uuid.UUID, externalID string) (store.Call, error) {
	if f.setCallExternalID == nil {
		return store.Call{}, errUnexpectedCall
	}
	return f.setCallExternalID(ctx, id, externalID)
}

func (f *fakeStore) StartCall(ctx context.Context, id uuid.UUID, startedAt *time.Time) (store.Call, error) {
	if f.startCall == nil {
		return store.Call{}, errUnexpectedCall
	}
	return f.startCall(ctx, id, startedAt)
}

func (f *fakeStore) EndCall(ctx context.Context, id uuid.UUID, params store.EndCallParams) (store.Call, error) {
	if f.endCall == nil {
		return store.Call{}, errUnexpectedCall
	}
	return f.endCall(ctx, id, params)
}

func (f *fakeStore) MarkCallFailed(ctx context.Context, id uuid.UUID, reason string) (store.Call, error) {
	if f.markCallFailed == nil {
		return store.Call{}, errUnexpectedCall
	}
	return f.markCallFailed(ctx, id, reason)
}

func (f *fakeStore) ListCalls(ctx context.Context, params store.ListCallsParams) ([]store.Call, error) {
	if f.listCalls == nil {
		return nil, errUnexpectedCall
	}
	return f.listCalls(ctx, params)
}

func (f *fakeStore) ListRecentCompletedCalls(ctx context.Context, limit int) ([]store.Call, error) {
	if f.listRecentCompleted == nil {
		return nil, errUnexpectedCall
	}
	return f.listRecentCompleted(ctx, limit)
}

func (f *fakeStore) CreateTranscript(ctx context.Context, params store.CreateTranscriptParams) (store.Transcript, error) {
	if f.createTranscript == nil {
		return store.Transcript{}, errUnexpectedCall
	}
	return f.createTranscript(ctx, params)
}

func (f *fakeStore) GetTranscriptByCallID(ctx context.Context, callID uuid.UUID) (store.Transcript, error) {
	if f.getTranscriptByCallID == nil {
		return store.Transcript{}, errUnexpectedCall
	}
	return f.getTranscriptByCallID(ctx, callID)
}

func (f *fakeStore) GetStructuredSummaryByCallID(ctx context.Context, callID uuid.UUID) (store.StructuredSummary, error) {
	if f.getSummaryByCallID == nil {
		return store.StructuredSummary{}, errUnexpectedCall
	}
	return f.getSummaryByCallID(ctx, callID)
}

func (f *fakeStore) GetAgentConfigByID(ctx context.Context, id uuid.UUID) (store.AgentConfig, error) {
	if f.getAgentConfigByID == nil {
		return store.AgentConfig{}, errUnexpectedCall
	}
	return f.getAgentConfigByID(ctx, id)
}

func (f *fakeStore) GetActiveAgentConfig(ctx context.Context, scenarioType string) (store.AgentConfig, error) {
	if f.getActiveAgentConfig == nil {
		return store.AgentConfig{}, errUnexpectedCall
	}
	return f.getActiveAgentConfig(ctx, scenarioType)
}

// fakeVendor implements VendorClient
type fakeVendor struct {
	createPhoneCall func(ctx context.Context, params retell.CreatePhoneCallParams) (retell.CallResponse, error)
	createWebCall   func(ctx context.Context, params retell.CreateWebCallParams) (retell.CallResponse, error)
}

func (f *fakeVendor) CreatePhoneCall(ctx context.Context, params retell.CreatePhoneCallParams) (retell.CallResponse, error) {
	if f.createPhoneCall == nil {
		return retell.CallResponse{}, errUnexpectedCall
	}
	return f.createPhoneCall(ctx, params)
}

func (f *fakeVendor) CreateWebCall(ctx context.Context, params retell.CreateWebCallParams) (retell.CallResponse, error) {
	if f.createWebCall == nil {
		return retell.CallResponse{}, errUnexpectedCall
	}
	return f.createWebCall(ctx, params)
}

// fakeValidator implements PhoneValidator
type fakeValidator struct {
	validate func(ctx context.Context, phoneNumber string) error
}

func (f *fakeValidator) ValidatePhoneNumber(ctx context.Context, phoneNumber string) error {
	return f.validate(ctx, phoneNumber)
}

func newTestProcessor(s CallStore, v VendorClient, pv PhoneValidator) *CallProcessor {
	return New(s, v, pv, nil, "agent-1", "+15550000000", observability.NewLogger())
}

func activeConfig(scenarioType string) store.AgentConfig {
	return store.AgentConfig{
		ID:           uuid.New(),
		Name:         "test config",
		ScenarioType: scenarioType,
		SystemPrompt: "prompt",
		IsActive:     true,
	}
}

func TestCreateCall_WebCall(t *testing.T) {
	ctx := context.Background()
	config := activeConfig(store.ScenarioCheckin)
	callID := uuid.New()

	var createdWith store.CreateCallParams
	fake := &fakeStore{
		getActiveAgentConfig: func(_ context.Context, scenarioType string) (store.AgentConfig, error) {
			if scenarioType != store.ScenarioCheckin {
				t.Errorf("expected default checkin scenario, got %q", scenarioType)
			}
			return config, nil
		},
		createCall: func(_ context.Context, params store.CreateCallParams) (store.Call, error) {
			createdWith = params
			return store.Call{ID: callID, Status: store.CallStatusPending, Channel: store.CallChannelWeb}, nil
		},
		setCallExternalID: func(_ context.Context, id uuid.UUID, externalID string) (store.Call, error) {
			if externalID != "ext-123" {
				t.Errorf("expected external id ext-123, got %q", externalID)
			}
			call := store.Call{ID: id, Status: store.CallStatusPending, Channel: store.CallChannelWeb}
			call.ExternalCallID.String = externalID
			call.ExternalCallID.Valid = true
			return call, nil
		},
	}
	vendor := &fakeVendor{
		createWebCall: func(_ context.Context, params retell.CreateWebCallParams) (retell.CallResponse, error) {
			if params.Metadata["internal_call_id"] != callID.String() {
				t.Errorf("expected internal call id in metadata, got %q", params.Metadata["internal_call_id"])
			}
			if params.DynamicVariables["driver_name"] != "Mike" {
				t.Errorf("expected driver name variable, got %q", params.DynamicVariables["driver_name"])
			}
			return retell.CallResponse{CallID: "ext-123", AccessToken: "token-abc"}, nil
		},
	}

	result, err := newTestProcessor(fake, vendor, nil).CreateCall(ctx, CreateCallParams{
		Channel:    store.CallChannelWeb,
		DriverName: "Mike",
		LoadNumber: "L-100",
	})
	if err != nil {
		t.Fatalf("CreateCall returned error: %v", err)
	}
	if result.AccessToken != "token-abc" {
		t.Errorf("expected access token token-abc, got %q", result.AccessToken)
	}
	if !result.Call.ExternalCallID.Valid || result.Call.ExternalCallID.String != "ext-123" {
		t.Errorf("expected external call id on result, got %+v", result.Call.ExternalCallID)
	}
	if createdWith.AgentConfigID == nil || *createdWith.AgentConfigID != config.ID {
		t.Errorf("expected call created with config %s, got %+v", config.ID, createdWith.AgentConfigID)
	}
}

func TestCreateCall_PhoneValidation(t *testing.T) {
	ctx := context.Background()
	phone := "+15551234567"

	t.Run("phone call without number is rejected before persisting", func(t *testing.T) {
		created := false
		fake := &fakeStore{
			createCall: func(context.Context, store.CreateCallParams) (store.Call, error) {
				created = true
				return store.Call{}, nil
			},
		}
		_, err := newTestProcessor(fake, &fakeVendor{}, nil).CreateCall(ctx, CreateCallParams{
			Channel:    store.CallChannelPhone,
			DriverName: "Mike",
			LoadNumber: "L-100",
		})
		if !errors.Is(err, ErrPhoneNumberRequired) {
			t.Fatalf("expected ErrPhoneNumberRequired, got %v", err)
		}
		if created {
			t.Error("call record should not be created when validation fails")
		}
	})

	t.Run("unknown number is rejected", func(t *testing.T) {
		validator := &fakeValidator{
			validate: func(context.Context, string) error { return twilio.ErrInvalidPhoneNumber },
		}
		_, err := newTestProcessor(&fakeStore{}, &fakeVendor{}, validator).CreateCall(ctx, CreateCallParams{
			Channel:     store.CallChannelPhone,
			DriverName:  "Mike",
			LoadNumber:  "L-100",
			PhoneNumber: &phone,
		})
		if !errors.Is(err, ErrInvalidPhoneNumber) {
			t.Fatalf("expected ErrInvalidPhoneNumber, got %v", err)
		}
	})

	t.Run("lookup outage does not block the call", func(t *testing.T) {
		config := activeConfig(store.ScenarioCheckin)
		callID := uuid.New()
		fake := &fakeStore{
			getActiveAgentConfig: func(context.Context, string) (store.AgentConfig, error) {
				return config, nil
			},
			createCall: func(context.Context, store.CreateCallParams) (store.Call, error) {
				return store.Call{ID: callID, Status: store.CallStatusPending}, nil
			},
			setCallExternalID: func(_ context.Context, id uuid.UUID, externalID string) (store.Call, error) {
				return store.Call{ID: id, Status: store.CallStatusPending}, nil
			},
		}
		vendor := &fakeVendor{
			createPhoneCall: func(_ context.Context, params retell.CreatePhoneCallParams) (retell.CallResponse, error) {
				if params.ToNumber != phone {
					t.Errorf("expected to_number %q, got %q", phone, params.ToNumber)
				}
				return retell.CallResponse{CallID: "ext-9"}, nil
			},
		}
		validator := &fakeValidator{
			validate: func(context.Context, string) error { return errors.New("lookup timed out") },
		}
		_, err := newTestProcessor(fake, vendor, validator).CreateCall(ctx, CreateCallParams{
			Channel:     store.CallChannelPhone,
			DriverName:  "Mike",
			LoadNumber:  "L-100",
			PhoneNumber: &phone,
		})
		if err != nil {
			t.Fatalf("CreateCall returned error: %v", err)
		}
	})
}

func TestCreateCall_VendorFailureMarksCallFailed(t *testing.T) {
	ctx := context.Background()
	config := activeConfig(store.ScenarioEmergency)
	callID := uuid.New()

	markedFailed := false
	fake := &fakeStore{
		getActiveAgentConfig: func(context.Context, string) (store.AgentConfig, error) {
			return config, nil
		},
		createCall: func(context.Context, store.CreateCallParams) (store.Call, error) {
			return store.Call{ID: callID, Status: store.CallStatusPending}, nil
		},
		markCallFailed: func(_ context.Context, id uuid.UUID, reason string) (store.Call, error) {
			markedFailed = true
			if id != callID {
				t.Errorf("expected call %s marked failed, got %s", callID, id)
			}
			return store.Call{ID: id, Status: store.CallStatusFailed}, nil
		},
	}
	vendor := &fakeVendor{
		createWebCall: func(context.Context, retell.CreateWebCallParams) (retell.CallResponse, error) {
			return retell.CallResponse{}, retell.ErrVendorUnavailable
		},
	}

	_, err := newTestProcessor(fake, vendor, nil).CreateCall(ctx, CreateCallParams{
		Channel:      store.CallChannelWeb,
		DriverName:   "Mike",
		LoadNumber:   "L-100",
		ScenarioType: store.ScenarioEmergency,
	})
	if !errors.Is(err, retell.ErrVendorUnavailable) {
		t.Fatalf("expected vendor error to propagate, got %v", err)
	}
	if !markedFailed {
		t.Error("expected the call to be marked failed after vendor rejection")
	}
}

func TestCreateCall_ConfigResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown explicit config", func(t *testing.T) {
		configID := uuid.New()
		fake := &fakeStore{
			getAgentConfigByID: func(context.Context, uuid.UUID) (store.AgentConfig, error) {
				return store.AgentConfig{}, store.ErrNotFound
			},
		}
		_, err := newTestProcessor(fake, &fakeVendor{}, nil).CreateCall(ctx, CreateCallParams{
			Channel:       store.CallChannelWeb,
			DriverName:    "Mike",
			LoadNumber:    "L-100",
			AgentConfigID: &configID,
		})
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid scenario", func(t *testing.T) {
		_, err := newTestProcessor(&fakeStore{}, &fakeVendor{}, nil).CreateCall(ctx, CreateCallParams{
			Channel:      store.CallChannelWeb,
			DriverName:   "Mike",
			LoadNumber:   "L-100",
			ScenarioType: "roadside-chat",
		})
		if !errors.Is(err, ErrInvalidScenario) {
			t.Fatalf("expected ErrInvalidScenario, got %v", err)
		}
	})

	t.Run("no active config for scenario", func(t *testing.T) {
		fake := &fakeStore{
			getActiveAgentConfig: func(context.Context, string) (store.AgentConfig, error) {
				return store.AgentConfig{}, store.ErrNotFound
			},
		}
		_, err := newTestProcessor(fake, &fakeVendor{}, nil).CreateCall(ctx, CreateCallParams{
			Channel:    store.CallChannelWeb,
			DriverName: "Mike",
			LoadNumber: "L-100",
		})
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestCreateCall_InvalidChannel(t *testing.T) {
	_, err := newTestProcessor(&fakeStore{}, &fakeVendor{}, nil).CreateCall(context.Background(), CreateCallParams{
		Channel:    "carrier-pigeon",
		DriverName: "Mike",
		LoadNumber: "L-100",
	})
	if !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}
